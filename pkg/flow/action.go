package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/golem/pkg/domain"
)

// Dialog is the view of the running turn handed to actions.
type Dialog interface {
	// Context returns the staged session context of this turn.
	Context() *domain.Context

	// Session returns the session being processed.
	Session() domain.Session

	// CurrentState returns the active state name ("flow.state").
	CurrentState() string

	// Send delivers messages through the session's channel.
	Send(ctx context.Context, msgs ...domain.Message) error

	// MoveTo forces a transition. It reports whether a transition happened.
	MoveTo(ctx context.Context, target domain.Target) (bool, error)

	// MoveToForced is MoveTo that re-enters, and re-records, the current state.
	MoveToForced(ctx context.Context, target domain.Target) (bool, error)

	// ScheduleAt re-delivers the session to callback at the given time.
	ScheduleAt(ctx context.Context, callback string, at time.Time) error

	// ScheduleAfter re-delivers the session to callback after a delay.
	ScheduleAfter(ctx context.Context, callback string, after time.Duration) error

	// Inactive re-delivers the session to callback if the user stays silent for the given duration.
	Inactive(ctx context.Context, callback string, after time.Duration) error

	// Logger returns a logger scoped to the session.
	Logger() *slog.Logger
}

// Action is the behavior bound to a state or to a requirement's remediation.
type Action interface {
	Run(ctx context.Context, d Dialog) error
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, d Dialog) error

// Run implements Action.
func (f ActionFunc) Run(ctx context.Context, d Dialog) error {
	return f(ctx, d)
}

// Predicate is a pure check over the context. It must not mutate it.
type Predicate func(c *domain.Context) bool

// Resolver looks up named actions and predicates referenced by definitions.
type Resolver interface {
	Action(name string) (Action, bool)
	Predicate(name string) (Predicate, bool)
}

// TextAction sends a fixed message and optionally moves on.
type TextAction struct {
	Message domain.Message
	Next    string
}

// Run implements Action.
func (a TextAction) Run(ctx context.Context, d Dialog) error {
	if err := d.Send(ctx, a.Message); err != nil {
		return err
	}
	if a.Next == "" {
		return nil
	}
	_, err := d.MoveTo(ctx, domain.ByName(a.Next))
	return err
}
