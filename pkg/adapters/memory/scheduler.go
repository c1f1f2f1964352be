package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/google/uuid"
)

// ErrSchedulerClosed is returned by Enqueue after Close.
var ErrSchedulerClosed = errors.New("scheduler closed")

// Scheduler implements ports.Scheduler with in-process timers.
// Tasks do not survive a restart; use the redis scheduler for that.
type Scheduler struct {
	mu      sync.Mutex
	handler ports.TaskHandler
	timers  map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
	logger  *slog.Logger
	now     func() time.Time
}

// SchedulerOption configures the Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger configures a logger for task failures.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a timer based scheduler. Bind must be called before tasks fire.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		timers: make(map[string]*time.Timer),
		logger: logging.NewNop(),
		now:    time.Now,
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

// Enqueue arms a timer for the task and returns immediately.
func (s *Scheduler) Enqueue(ctx context.Context, task ports.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSchedulerClosed
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	delay := task.ETA.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.wg.Add(1)
	s.timers[task.ID] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.fire(task)
	})
	return nil
}

func (s *Scheduler) fire(task ports.Task) {
	s.mu.Lock()
	delete(s.timers, task.ID)
	h := s.handler
	s.mu.Unlock()

	if h == nil {
		s.logger.Warn("dropping task, scheduler not bound", "task_id", task.ID, "callback", task.Callback)
		return
	}
	if err := h(context.Background(), task); err != nil {
		s.logger.Error("scheduled task failed",
			"task_id", task.ID,
			"session_id", task.Session.ID,
			"callback", task.Callback,
			"err", err,
		)
	}
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels pending tasks and waits for running ones.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
