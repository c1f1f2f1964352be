package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/aretw0/golem/pkg/session"
)

// Engine runs dialog turns against a flow registry.
// One Engine serves every session; turns of one session are serialized by the session manager.
type Engine struct {
	flows     *flow.Registry
	resolver  *Resolver
	sessions  *session.Manager
	channels  ports.ChannelResolver
	extractor ports.EntityExtractor
	scheduler ports.Scheduler
	turnLog   ports.TurnLogger
	recorder  ports.Recorder
	hooks     domain.LifecycleHooks
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithConfig replaces the engine settings. Start from DefaultConfig.
func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithChannels sets how sessions are mapped to channel adapters.
func WithChannels(r ports.ChannelResolver) EngineOption {
	return func(e *Engine) {
		e.channels = r
	}
}

// WithExtractor sets the extractor used for events that carry a raw payload but no entities.
func WithExtractor(x ports.EntityExtractor) EngineOption {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithScheduler enables scheduled and inactivity callbacks.
func WithScheduler(s ports.Scheduler) EngineOption {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithTurnLogger records every turn once it is complete.
func WithTurnLogger(l ports.TurnLogger) EngineOption {
	return func(e *Engine) {
		e.turnLog = l
	}
}

// WithRecorder enables the test_record commands.
func WithRecorder(r ports.Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over a loaded registry.
func NewEngine(flows *flow.Registry, sessions *session.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		flows:    flows,
		sessions: sessions,
		cfg:      DefaultConfig(),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.withDefaults()
	e.resolver = NewResolver(flows, e.cfg.IntentMaxAge, e.logger)
	return e
}

// Flows returns the registry the engine runs on.
func (e *Engine) Flows() *flow.Registry {
	return e.flows
}

// Config returns the effective settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Outcome summarizes a processed turn.
type Outcome struct {
	SessionID    string           `json:"session_id"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	Counter      int              `json:"counter"`
	Transitioned bool             `json:"transitioned"`
	Ignored      bool             `json:"ignored,omitempty"`
	Messages     []domain.Message `json:"messages"`

	// Errors lists contained action failures. The turn itself succeeded.
	Errors []*domain.ActionError `json:"-"`
}

// Process runs one turn for the event.
// Contained action failures are reported in the outcome; only persistence,
// channel lookup and extraction failures are returned as errors.
func (e *Engine) Process(ctx context.Context, ev domain.Event) (*Outcome, error) {
	return e.process(ctx, ev, nil)
}

// Deliver runs a due scheduler task as a schedule event targeting its callback.
// Inactivity tasks are dropped when the session processed a turn after they were enqueued.
func (e *Engine) Deliver(ctx context.Context, task ports.Task) error {
	ev := domain.Event{
		Type:       domain.EventSchedule,
		Session:    task.Session,
		Entities:   map[string]any{domain.EntityState: task.Callback},
		ReceivedAt: e.now(),
	}
	var expect *int
	if task.Kind == ports.TaskInactivity {
		ev.Entities[domain.EntityInactive] = task.After.Seconds()
		counter := task.Counter
		expect = &counter
	}
	_, err := e.process(ctx, ev, expect)
	return err
}

func (e *Engine) process(ctx context.Context, ev domain.Event, expectCounter *int) (*Outcome, error) {
	if !ev.Type.Processable() {
		e.logger.Debug("ignoring event", "type", ev.Type, "session_id", ev.Session.ID)
		return &Outcome{SessionID: ev.Session.ID, Ignored: true}, nil
	}
	if ev.Session.ID == "" {
		return nil, errors.New("event without session id")
	}

	entities := ev.Entities
	if entities == nil && ev.Raw != nil && e.extractor != nil {
		var err error
		if entities, err = e.extractor.Extract(ctx, ev.Raw); err != nil {
			return nil, fmt.Errorf("extract entities: %w", err)
		}
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = e.now()
	}

	if e.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TurnTimeout)
		defer cancel()
	}

	var out *Outcome
	err := e.sessions.WithLock(ctx, ev.Session.ID, func(ctx context.Context) error {
		var err error
		out, err = e.runTurn(ctx, ev, entities, expectCounter)
		return err
	})
	return out, err
}

func (e *Engine) runTurn(ctx context.Context, ev domain.Event, entities map[string]any, expectCounter *int) (*Outcome, error) {
	t, err := e.load(ctx, ev.Session)
	if err != nil {
		return nil, err
	}
	if expectCounter != nil && t.ctx.Counter != *expectCounter {
		t.logger.Debug("dropping stale inactivity callback", "counter", t.ctx.Counter, "expected", *expectCounter)
		return &Outcome{SessionID: t.session.ID, From: t.state, To: t.state, Counter: t.ctx.Counter, Ignored: true}, nil
	}

	if err := t.channel.ProcessingStart(ctx, t.session); err != nil {
		t.logger.Warn("processing start notification failed", "err", err)
	}

	from := t.state
	event := &domain.TurnEvent{
		SessionID:  t.session.ID,
		Type:       ev.Type,
		FromState:  from,
		AcceptedAt: ev.ReceivedAt,
	}
	if e.hooks.OnTurnStart != nil {
		e.hooks.OnTurnStart(ctx, event)
	}

	t.ctx.Counter++
	fresh := t.ctx.AddEntities(entities)
	event.Entities = fresh

	if !t.testRecord(ctx, ev.Type, entities) {
		if ev.Type != domain.EventSchedule {
			t.activeAt = ev.ReceivedAt
			e.scheduleInactivity(ctx, t)
		}

		t.setPhase(PhaseResolving)
		d := e.resolver.Resolve(t.state, t.ctx, fresh)
		t.logger.Debug("resolved transition", "decision", describe(d))
		switch d.Step {
		case StepNone:
		case StepAccept:
			t.reenter(ctx)
		default:
			_, _ = t.moveTo(ctx, domain.ByName(d.State), false)
		}
	}

	// Persist even when the turn ran out of time, so completed work is not lost.
	saveCtx := context.WithoutCancel(ctx)
	t.setPhase(PhasePersisting)
	saveErr := e.save(saveCtx, t)
	t.setPhase(PhaseIdle)

	if err := t.channel.ProcessingEnd(saveCtx, t.session); err != nil {
		t.logger.Warn("processing end notification failed", "err", err)
	}

	event.ToState = t.state
	event.Duration = e.now().Sub(ev.ReceivedAt)
	event.Err = saveErr
	if e.turnLog != nil {
		if err := e.turnLog.LogTurn(saveCtx, event, entities); err != nil {
			t.logger.Warn("turn log failed", "err", err)
		}
	}
	if e.hooks.OnTurnEnd != nil {
		e.hooks.OnTurnEnd(saveCtx, event)
	}

	if saveErr != nil {
		return nil, saveErr
	}
	return &Outcome{
		SessionID:    t.session.ID,
		From:         from,
		To:           t.state,
		Counter:      t.ctx.Counter,
		Transitioned: t.moved,
		Messages:     t.sent,
		Errors:       t.failures,
	}, nil
}

// load builds the turn from the stored record. Missing sessions and records
// written under another schema version start fresh.
func (e *Engine) load(ctx context.Context, s domain.Session) (*turn, error) {
	t := &turn{
		e:       e,
		session: s,
		ctx:     domain.NewContext(),
		logger:  e.logger.With("session_id", s.ID),
	}
	t.setPhase(PhaseLoading)

	rec, err := e.sessions.Store().Load(ctx, s.ID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		t.logger.Info("creating new session")
	case err != nil:
		return nil, &domain.PersistenceError{SessionID: s.ID, Op: "load", Err: err}
	case rec.Version != e.cfg.SchemaVersion:
		t.logger.Info("schema version changed, starting fresh session", "stored", rec.Version, "current", e.cfg.SchemaVersion)
		e.restoreSession(t, rec)
	default:
		if err := json.Unmarshal(rec.Context, t.ctx); err != nil {
			return nil, &domain.PersistenceError{SessionID: s.ID, Op: "decode", Err: err}
		}
		t.state = rec.State
		t.activeAt = rec.ActiveAt
		if _, ok := e.flows.State(t.state); t.state != "" && !ok {
			t.logger.Warn("stored state no longer exists, resetting", "state", t.state)
			t.state = ""
		}
		e.restoreSession(t, rec)
	}

	ch, err := e.channelFor(t.session)
	if err != nil {
		return nil, err
	}
	t.channel = ch
	return t, nil
}

// restoreSession fills channel details the event did not carry from the stored blob.
func (e *Engine) restoreSession(t *turn, rec *domain.Record) {
	if t.session.Channel != "" || len(rec.Session) == 0 {
		return
	}
	var stored domain.Session
	if err := json.Unmarshal(rec.Session, &stored); err != nil {
		t.logger.Warn("ignoring malformed session blob", "err", err)
		return
	}
	if stored.ID == t.session.ID {
		t.session = stored
	}
}

func (e *Engine) channelFor(s domain.Session) (ports.Channel, error) {
	if e.channels == nil {
		return nopChannel{name: e.cfg.ChannelName}, nil
	}
	ch, err := e.channels.ForSession(s)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	return ch, nil
}

func (e *Engine) save(ctx context.Context, t *turn) error {
	blob, err := json.Marshal(t.ctx)
	if err != nil {
		return &domain.PersistenceError{SessionID: t.session.ID, Op: "encode", Err: err}
	}
	raw, err := json.Marshal(t.session)
	if err != nil {
		return &domain.PersistenceError{SessionID: t.session.ID, Op: "encode", Err: err}
	}
	rec := &domain.Record{
		State:     t.state,
		Context:   blob,
		Interface: t.channel.Name(),
		Session:   raw,
		Version:   e.cfg.SchemaVersion,
		ActiveAt:  t.activeAt,
	}
	t.logger.Debug("saving state", "state", t.state)
	if err := e.sessions.Store().Save(ctx, t.session.ID, rec); err != nil {
		return &domain.PersistenceError{SessionID: t.session.ID, Op: "save", Err: err}
	}
	return nil
}

func (e *Engine) scheduleInactivity(ctx context.Context, t *turn) {
	if e.scheduler == nil || len(e.cfg.InactiveCallbacks) == 0 {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(e.cfg.InactiveCallbacks)) {
		if err := t.Inactive(ctx, name, e.cfg.InactiveCallbacks[name]); err != nil {
			t.logger.Warn("failed to schedule inactivity callback", "callback", name, "err", err)
		}
	}
}

// Snapshot is the decoded state of a stored session.
type Snapshot struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Interface string          `json:"interface"`
	Version   string          `json:"version"`
	ActiveAt  time.Time       `json:"active_at"`
	Context   *domain.Context `json:"context"`
}

// Inspect loads a session for administrative surfaces.
func (e *Engine) Inspect(ctx context.Context, sessionID string) (*Snapshot, error) {
	rec, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, &domain.PersistenceError{SessionID: sessionID, Op: "load", Err: err}
	}
	snap := &Snapshot{
		SessionID: sessionID,
		Interface: rec.Interface,
		Version:   rec.Version,
		ActiveAt:  rec.ActiveAt,
		Context:   domain.NewContext(),
	}
	// A context from another schema version is discarded by the next turn,
	// so it is shown as the fresh session that turn will start.
	if rec.Version != e.cfg.SchemaVersion {
		return snap, nil
	}
	if err := json.Unmarshal(rec.Context, snap.Context); err != nil {
		return nil, &domain.PersistenceError{SessionID: sessionID, Op: "decode", Err: err}
	}
	snap.State = rec.State
	return snap, nil
}

// Clear removes the state pointer and context of a session.
func (e *Engine) Clear(ctx context.Context, sessionID string) error {
	if err := e.sessions.Clear(ctx, sessionID); err != nil {
		return &domain.PersistenceError{SessionID: sessionID, Op: "clear", Err: err}
	}
	return nil
}

// Sessions lists stored session ids.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// nopChannel discards output when no channel resolver is configured.
type nopChannel struct{ name string }

func (c nopChannel) Name() string   { return c.name }
func (c nopChannel) Prefix() string { return "" }
func (nopChannel) ProcessingStart(context.Context, domain.Session) error {
	return nil
}
func (nopChannel) ProcessingEnd(context.Context, domain.Session) error {
	return nil
}
func (nopChannel) PostMessage(context.Context, domain.Session, domain.Message) error {
	return nil
}
func (nopChannel) StateChange(context.Context, domain.Session, string) error {
	return nil
}
