package ports

import (
	"context"
	"time"

	"github.com/aretw0/golem/pkg/domain"
)

// TaskKind distinguishes plain schedules from inactivity checks.
type TaskKind string

const (
	TaskSchedule   TaskKind = "schedule"
	TaskInactivity TaskKind = "inactivity"
)

// Task is a deferred re-delivery of a session to a callback state.
type Task struct {
	ID       string         `json:"id"`
	Kind     TaskKind       `json:"kind"`
	Session  domain.Session `json:"session"`
	Callback string         `json:"callback"`
	ETA      time.Time      `json:"eta"`

	// Counter is the context counter when an inactivity task was enqueued.
	// The task is stale once the session processed another turn.
	Counter int `json:"counter,omitempty"`

	// After is the inactivity period, reported back to the callback.
	After time.Duration `json:"after,omitempty"`
}

// Scheduler enqueues tasks. Enqueue must not block on task execution.
type Scheduler interface {
	Enqueue(ctx context.Context, task Task) error
}

// TaskHandler receives due tasks.
type TaskHandler func(ctx context.Context, task Task) error
