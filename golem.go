package golem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/adapters/loam"
	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/channel"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/aretw0/golem/pkg/recorder"
	"github.com/aretw0/golem/pkg/session"
)

// Outcome summarizes a processed turn.
type Outcome = runtime.Outcome

// Snapshot is the decoded state of a stored session.
type Snapshot = runtime.Snapshot

// Config holds the engine settings.
type Config = runtime.Config

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return runtime.DefaultConfig()
}

// Bot is the high-level entry point of the library.
// It wires the dialog engine to its collaborators and serializes turns per session.
type Bot struct {
	Name string

	engine    *runtime.Engine
	channels  *channel.Registry
	scheduler ports.Scheduler
	logger    *slog.Logger

	cfg         Config
	store       ports.SessionStore
	locker      ports.DistributedLocker
	extra       []ports.Channel
	extractor   ports.EntityExtractor
	turnLog     ports.TurnLogger
	recorder    ports.Recorder
	noRecorder  bool
	hooks       domain.LifecycleHooks
	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithName names the bot in logs and the CLI banner.
func WithName(name string) Option {
	return func(b *Bot) {
		b.Name = name
	}
}

// WithConfig replaces the engine settings.
func WithConfig(cfg Config) Option {
	return func(b *Bot) {
		b.cfg = cfg
	}
}

// WithStore sets the persistence backend. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(b *Bot) {
		b.store = store
	}
}

// WithLocker adds a distributed lock around each turn, for bots running on several processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.locker = locker
	}
}

// WithChannels registers chat channels. Sessions are bound to them by name or id prefix.
func WithChannels(channels ...ports.Channel) Option {
	return func(b *Bot) {
		b.extra = append(b.extra, channels...)
	}
}

// WithExtractor sets the extractor for events that carry a raw payload.
func WithExtractor(x ports.EntityExtractor) Option {
	return func(b *Bot) {
		b.extractor = x
	}
}

// WithScheduler enables ScheduleAt, ScheduleAfter and inactivity callbacks.
// A scheduler with a Bind(ports.TaskHandler) method is bound to Bot.Deliver.
func WithScheduler(s ports.Scheduler) Option {
	return func(b *Bot) {
		b.scheduler = s
	}
}

// WithTurnLogger records every processed turn.
func WithTurnLogger(l ports.TurnLogger) Option {
	return func(b *Bot) {
		b.turnLog = l
	}
}

// WithRecorder replaces the conversation test recorder.
func WithRecorder(r ports.Recorder) Option {
	return func(b *Bot) {
		b.recorder = r
	}
}

// WithoutRecorder disables the test_record command.
func WithoutRecorder() Option {
	return func(b *Bot) {
		b.noRecorder = true
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bot) {
		b.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithClock overrides the time source. Useful in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		b.runtimeOpts = append(b.runtimeOpts, runtime.WithClock(now))
	}
}

type binder interface {
	Bind(h ports.TaskHandler)
}

// New creates a bot over a loaded flow registry.
func New(flows *flow.Registry, opts ...Option) (*Bot, error) {
	if flows == nil {
		return nil, errors.New("golem: flow registry is required")
	}
	b := &Bot{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logging.NewNop()
	}
	if b.store == nil {
		b.store = memory.NewStore()
	}
	if b.recorder == nil && !b.noRecorder {
		b.recorder = recorder.New(recorder.WithLogger(b.logger))
	}

	channels, err := channel.NewRegistry(b.extra...)
	if err != nil {
		return nil, fmt.Errorf("golem: %w", err)
	}
	b.channels = channels

	sessOpts := []session.Option{session.WithLogger(b.logger)}
	if b.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(b.locker))
	}

	engineOpts := []runtime.EngineOption{
		runtime.WithConfig(b.cfg),
		runtime.WithLogger(b.logger),
		runtime.WithLifecycleHooks(b.hooks),
	}
	if len(b.extra) > 0 {
		engineOpts = append(engineOpts, runtime.WithChannels(channels))
	}
	if b.extractor != nil {
		engineOpts = append(engineOpts, runtime.WithExtractor(b.extractor))
	}
	if b.scheduler != nil {
		engineOpts = append(engineOpts, runtime.WithScheduler(b.scheduler))
	}
	if b.turnLog != nil {
		engineOpts = append(engineOpts, runtime.WithTurnLogger(b.turnLog))
	}
	if b.recorder != nil {
		engineOpts = append(engineOpts, runtime.WithRecorder(b.recorder))
	}
	engineOpts = append(engineOpts, b.runtimeOpts...)

	b.engine = runtime.NewEngine(flows, session.NewManager(b.store, sessOpts...), engineOpts...)

	if s, ok := b.scheduler.(binder); ok {
		s.Bind(b.Deliver)
	}
	return b, nil
}

// FromDirectory loads flows from a directory of state documents and creates a bot over them.
// Named actions and checks referenced by the documents are looked up in actions.
func FromDirectory(ctx context.Context, dir string, actions flow.Resolver, opts ...Option) (*Bot, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	loader, err := loam.Open(absPath)
	if err != nil {
		return nil, err
	}
	flows, err := loader.Load(ctx, actions)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithName(filepath.Base(absPath))}, opts...)
	return New(flows, opts...)
}

// Process runs one turn for the event.
// Contained action failures are reported in the outcome; persistence, channel
// and extraction failures are returned.
func (b *Bot) Process(ctx context.Context, ev domain.Event) (*Outcome, error) {
	return b.engine.Process(ctx, ev)
}

// Send is Process for a user message addressed by session id.
func (b *Bot) Send(ctx context.Context, sessionID string, entities map[string]any) (*Outcome, error) {
	s, err := b.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = map[string]any{}
	}
	return b.engine.Process(ctx, domain.Event{Type: domain.EventMessage, Session: s, Entities: entities})
}

// Deliver runs a due scheduler task. Schedulers call it when a task fires.
func (b *Bot) Deliver(ctx context.Context, task ports.Task) error {
	return b.engine.Deliver(ctx, task)
}

// Session rebuilds a session from its id using the registered channels.
// Without channels the id is used as is.
func (b *Bot) Session(id string) (domain.Session, error) {
	if len(b.extra) == 0 {
		return domain.Session{ID: id}, nil
	}
	return b.channels.FromSessionID(id)
}

// Inspect loads a stored session.
func (b *Bot) Inspect(ctx context.Context, sessionID string) (*Snapshot, error) {
	return b.engine.Inspect(ctx, sessionID)
}

// Clear forgets the state and context of a session.
func (b *Bot) Clear(ctx context.Context, sessionID string) error {
	return b.engine.Clear(ctx, sessionID)
}

// Sessions lists stored session ids.
func (b *Bot) Sessions(ctx context.Context) ([]string, error) {
	return b.engine.Sessions(ctx)
}

// Flows returns the loaded flows.
func (b *Bot) Flows() *flow.Registry {
	return b.engine.Flows()
}

// Config returns the effective engine settings.
func (b *Bot) Config() Config {
	return b.engine.Config()
}

// Channels returns the channel registry.
func (b *Bot) Channels() *channel.Registry {
	return b.channels
}

// Close stops the scheduler when it holds resources.
// The store is left open for whoever created it.
func (b *Bot) Close() error {
	if c, ok := b.scheduler.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
