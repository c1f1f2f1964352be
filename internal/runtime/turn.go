package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/ports"
)

// maxTransitions bounds the transitions one turn may perform, so actions that
// move back and forth cannot hold the session lock forever.
const maxTransitions = 32

var (
	// ErrNoScheduler is returned by scheduling calls when no scheduler is configured.
	ErrNoScheduler = errors.New("no scheduler configured")

	// ErrTooManyTransitions is returned by MoveTo once a turn exceeded maxTransitions.
	ErrTooManyTransitions = errors.New("too many transitions in one turn")
)

// turn is the staged state of one session while a turn runs. It implements flow.Dialog.
type turn struct {
	e        *Engine
	session  domain.Session
	channel  ports.Channel
	ctx      *domain.Context
	state    string
	activeAt time.Time
	logger   *slog.Logger

	phase       Phase
	recording   bool
	moved       bool
	transitions int
	apologized  bool
	sent        []domain.Message
	failures    []*domain.ActionError
}

var _ flow.Dialog = (*turn)(nil)

func (t *turn) Context() *domain.Context { return t.ctx }
func (t *turn) Session() domain.Session  { return t.session }
func (t *turn) CurrentState() string     { return t.state }
func (t *turn) Logger() *slog.Logger     { return t.logger }

func (t *turn) setPhase(p Phase) {
	t.phase = p
	t.logger.Debug("turn phase", "phase", p.String(), "state", t.state)
}

// Send posts messages in order. Delivery failures are logged and do not fail the action.
func (t *turn) Send(ctx context.Context, msgs ...domain.Message) error {
	for _, msg := range msgs {
		if err := t.channel.PostMessage(ctx, t.session, msg); err != nil {
			t.logger.Warn("message delivery failed", "channel", t.channel.Name(), "err", err)
		}
		t.sent = append(t.sent, msg)
		if t.recording && t.e.recorder != nil {
			t.e.recorder.RecordBotMessage(ctx, t.session.ID, msg)
		}
	}
	if t.e.cfg.LogMessages && t.e.turnLog != nil {
		for _, msg := range msgs {
			if err := t.e.turnLog.LogBotMessage(ctx, t.session.ID, t.state, msg); err != nil {
				t.logger.Warn("bot message log failed", "err", err)
			}
		}
	}
	return ctx.Err()
}

// MoveTo implements flow.Dialog.
func (t *turn) MoveTo(ctx context.Context, target domain.Target) (bool, error) {
	return t.moveTo(ctx, target, false)
}

// MoveToForced implements flow.Dialog.
func (t *turn) MoveToForced(ctx context.Context, target domain.Target) (bool, error) {
	return t.moveTo(ctx, target, true)
}

func (t *turn) moveTo(ctx context.Context, target domain.Target, force bool) (bool, error) {
	name, err := ResolveName(t.e.flows, t.state, t.ctx, target)
	if err != nil {
		t.logger.Warn("state does not exist, staying", "target", target.String(), "state", t.state)
		return false, err
	}
	if name == t.state && !force {
		return false, nil
	}
	if t.transitions >= maxTransitions {
		return false, fmt.Errorf("%w: %s -> %s", ErrTooManyTransitions, t.state, name)
	}
	t.transitions++

	t.setPhase(PhaseTransitioning)
	previous := t.state
	now := t.e.now()
	t.ctx.AddState(name, now)
	t.state = name
	t.moved = true
	t.logger.Info("moving", "from", previous, "to", name)

	if err := t.channel.StateChange(ctx, t.session, name); err != nil {
		t.logger.Warn("state change notification failed", "err", err)
	}
	if t.recording && t.e.recorder != nil {
		t.e.recorder.RecordStateChange(ctx, t.session.ID, name)
	}
	if t.e.hooks.OnStateChange != nil {
		t.e.hooks.OnStateChange(ctx, &domain.TransitionEvent{
			SessionID: t.session.ID,
			From:      previous,
			To:        name,
			Timestamp: now,
		})
	}

	t.enter(ctx, previous)
	return true, nil
}

// reenter runs the current state again without touching the history.
func (t *turn) reenter(ctx context.Context) {
	t.logger.Info("accepting entities in place", "state", t.state)
	t.enter(ctx, t.state)
}

// enter runs the action chosen by the gate for the current state.
func (t *turn) enter(ctx context.Context, previous string) {
	st, ok := t.e.flows.State(t.state)
	if !ok {
		return
	}
	action, satisfied := Gate(st, t.ctx)
	if !satisfied {
		t.logger.Info("requirement not met, running remediation", "state", t.state)
	}
	if action == nil {
		t.logger.Warn("state does not have an action", "state", t.state)
		return
	}

	t.setPhase(PhaseActing)
	if err := t.run(ctx, action); err != nil {
		t.contain(ctx, previous, err)
	}
}

// run executes the action, turning a panic into an error.
func (t *turn) run(ctx context.Context, action flow.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action.Run(ctx, t)
}

// contain logs a failed action and apologizes once per turn. The state pointer stays advanced.
func (t *turn) contain(ctx context.Context, previous string, err error) {
	aerr := &domain.ActionError{
		SessionID: t.session.ID,
		Previous:  previous,
		State:     t.state,
		Err:       err,
	}
	t.failures = append(t.failures, aerr)

	t.logger.Error("exception occurred while running action",
		"previous_state", previous,
		"state", t.state,
		"context", t.snapshot(),
		"err", err,
	)
	if t.e.hooks.OnActionError != nil {
		t.e.hooks.OnActionError(ctx, aerr)
	}

	if t.apologized {
		return
	}
	t.apologized = true
	_ = t.Send(context.WithoutCancel(ctx), domain.TextMessage(t.e.cfg.ApologyText))
}

// snapshot renders the context for diagnostics. It never fails.
func (t *turn) snapshot() (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = "<unavailable>"
		}
	}()
	s, err := t.ctx.Debug()
	if err != nil {
		return "<unavailable: " + err.Error() + ">"
	}
	return s
}

// testRecord handles the test_record entity. It reports whether the turn is done.
func (t *turn) testRecord(ctx context.Context, typ domain.EventType, entities map[string]any) bool {
	rec := t.e.recorder
	if rec == nil {
		return false
	}
	v, ok := t.ctx.Get(domain.EntityTestRecord, domain.AnyAge)
	if !ok {
		return false
	}
	value := fmt.Sprint(v)
	if age, _ := t.ctx.Age(domain.EntityTestRecord); age == 0 {
		var reply domain.Message
		switch value {
		case "start":
			reply = rec.Start(ctx, t.session.ID)
		case "stop":
			reply = rec.Stop(ctx, t.session.ID)
		default:
			reply = domain.TextMessage("Use /test_record/start/ or /test_record/stop/")
		}
		_ = t.Send(ctx, reply)
		return true
	}
	if value == "start" {
		rec.RecordUserMessage(ctx, t.session.ID, typ, entities)
		t.recording = true
	}
	return false
}

// ScheduleAt implements flow.Dialog.
func (t *turn) ScheduleAt(ctx context.Context, callback string, at time.Time) error {
	if at.IsZero() {
		return errors.New("schedule: time must be set")
	}
	return t.enqueue(ctx, ports.Task{
		Kind:     ports.TaskSchedule,
		Session:  t.session,
		Callback: callback,
		ETA:      at,
	})
}

// ScheduleAfter implements flow.Dialog.
func (t *turn) ScheduleAfter(ctx context.Context, callback string, after time.Duration) error {
	if after <= 0 {
		return errors.New("schedule: delay must be positive")
	}
	return t.ScheduleAt(ctx, callback, t.e.now().Add(after))
}

// Inactive implements flow.Dialog. The callback fires only if no turn runs in between.
func (t *turn) Inactive(ctx context.Context, callback string, after time.Duration) error {
	if after <= 0 {
		return errors.New("inactive: delay must be positive")
	}
	return t.enqueue(ctx, ports.Task{
		Kind:     ports.TaskInactivity,
		Session:  t.session,
		Callback: callback,
		ETA:      t.e.now().Add(after),
		Counter:  t.ctx.Counter,
		After:    after,
	})
}

func (t *turn) enqueue(ctx context.Context, task ports.Task) error {
	if t.e.scheduler == nil {
		return ErrNoScheduler
	}
	t.logger.Info("scheduling callback", "kind", task.Kind, "callback", task.Callback, "eta", task.ETA)
	if err := t.e.scheduler.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Callback, err)
	}
	return nil
}
