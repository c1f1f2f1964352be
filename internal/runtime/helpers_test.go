package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/channel"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/aretw0/golem/pkg/session"
	"github.com/stretchr/testify/require"
)

const sessionID = "test_1"

type harness struct {
	engine  *runtime.Engine
	store   *memory.Store
	channel *channel.Recording
}

func newHarness(t *testing.T, reg *flow.Registry, opts ...runtime.EngineOption) *harness {
	t.Helper()
	rec := channel.NewRecording("test", "test")
	channels, err := channel.NewRegistry(rec)
	require.NoError(t, err)

	store := memory.NewStore()
	opts = append([]runtime.EngineOption{runtime.WithChannels(channels)}, opts...)
	return &harness{
		engine:  runtime.NewEngine(reg, session.NewManager(store), opts...),
		store:   store,
		channel: rec,
	}
}

func (h *harness) send(t *testing.T, entities map[string]any) *runtime.Outcome {
	t.Helper()
	return h.event(t, domain.EventMessage, entities)
}

func (h *harness) event(t *testing.T, typ domain.EventType, entities map[string]any) *runtime.Outcome {
	t.Helper()
	if entities == nil {
		entities = map[string]any{}
	}
	out, err := h.engine.Process(context.Background(), domain.Event{
		Type:     typ,
		Session:  domain.NewSession("test", "test", "1"),
		Entities: entities,
	})
	require.NoError(t, err)
	return out
}

func (h *harness) snapshot(t *testing.T) *runtime.Snapshot {
	t.Helper()
	snap, err := h.engine.Inspect(context.Background(), sessionID)
	require.NoError(t, err)
	return snap
}

func historyNames(c *domain.Context) []string {
	out := make([]string, len(c.History))
	for i, h := range c.History {
		out[i] = h.Name
	}
	return out
}

// counter counts action runs per state.
type counter struct {
	mu   sync.Mutex
	runs map[string]int
}

func newCounter() *counter {
	return &counter{runs: make(map[string]int)}
}

func (c *counter) action(text string) flow.Action {
	return flow.ActionFunc(func(ctx context.Context, d flow.Dialog) error {
		c.mu.Lock()
		c.runs[d.CurrentState()]++
		c.mu.Unlock()
		return d.Send(ctx, domain.TextMessage(text))
	})
}

func (c *counter) get(state string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[state]
}

// fakeScheduler keeps enqueued tasks.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []ports.Task
}

func (s *fakeScheduler) Enqueue(ctx context.Context, task ports.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *fakeScheduler) all() []ports.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Task(nil), s.tasks...)
}

// fakeTurnLog keeps logged turns and bot messages.
type fakeTurnLog struct {
	mu       sync.Mutex
	turns    []domain.TurnEvent
	messages []string
}

func (l *fakeTurnLog) LogTurn(ctx context.Context, turn *domain.TurnEvent, entities map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, *turn)
	return nil
}

func (l *fakeTurnLog) LogBotMessage(ctx context.Context, sessionID, state string, msg domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, state+": "+msg.Text)
	return nil
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}
