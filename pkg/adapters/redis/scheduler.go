package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

const keyTasks = "scheduled_tasks"

// popDueScript atomically removes and returns up to ARGV[2] tasks whose score is <= ARGV[1].
var popDueScript = backend.NewScript(`
local due = redis.call("zrangebyscore", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
if #due > 0 then
	redis.call("zrem", KEYS[1], unpack(due))
end
return due
`)

// Scheduler is a delayed task queue on a Redis sorted set scored by ETA.
// Tasks survive restarts and are claimed by exactly one replica.
type Scheduler struct {
	client   backend.UniversalClient
	key      string
	interval time.Duration
	batch    int
	logger   *slog.Logger

	mu      sync.RWMutex
	handler ports.TaskHandler
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithPollInterval sets how often Run looks for due tasks.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSchedulerLogger configures a logger for task failures.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a scheduler storing tasks under prefix.
func NewScheduler(client backend.UniversalClient, prefix string, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		client:   client,
		key:      prefix + keyTasks,
		interval: time.Second,
		batch:    100,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind sets the handler that receives due tasks.
func (s *Scheduler) Bind(h ports.TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Enqueue adds the task to the queue. It performs one ZADD and never waits on execution.
func (s *Scheduler) Enqueue(ctx context.Context, task ports.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	err = s.client.ZAdd(ctx, s.key, backend.Z{
		Score:  float64(task.ETA.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return nil
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending(ctx context.Context) (int64, error) {
	return s.client.ZCard(ctx, s.key).Result()
}

// Run polls for due tasks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Poll(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("scheduler poll failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll claims the tasks due at now and hands them to the bound handler.
// It returns the number of tasks dispatched.
func (s *Scheduler) Poll(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h == nil {
		return 0, nil
	}

	due, err := popDueScript.Run(ctx, s.client, []string{s.key},
		strconv.FormatInt(now.UnixMilli(), 10), s.batch).StringSlice()
	if err != nil {
		return 0, fmt.Errorf("claim due tasks: %w", err)
	}

	for _, raw := range due {
		var task ports.Task
		if err := json.Unmarshal([]byte(raw), &task); err != nil {
			s.logger.Error("dropping malformed task", "payload", raw, "err", err)
			continue
		}
		if err := h(ctx, task); err != nil {
			s.logger.Error("scheduled task failed",
				"task_id", task.ID,
				"session_id", task.Session.ID,
				"callback", task.Callback,
				"err", err,
			)
		}
	}
	return len(due), nil
}
