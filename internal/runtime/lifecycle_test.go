package runtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/dsl"
	"github.com/aretw0/golem/pkg/flow"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/aretw0/golem/pkg/recorder"
	"github.com/aretw0/golem/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedContext(t *testing.T, counter int) []byte {
	t.Helper()
	c := domain.NewContext()
	c.Counter = counter
	c.AddState("billing.root", time.Now())
	data, err := json.Marshal(c)
	require.NoError(t, err)
	return data
}

func TestSchemaVersionMismatchStartsFresh(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()))
	require.NoError(t, h.store.Save(context.Background(), sessionID, &domain.Record{
		State:   "billing.root",
		Context: storedContext(t, 7),
		Version: "0.9",
	}))

	out := h.send(t, nil)

	assert.Equal(t, "", out.From)
	assert.Equal(t, "default.root", out.To)
	assert.Equal(t, 1, out.Counter)
	snap := h.snapshot(t)
	assert.Equal(t, runtime.DefaultConfig().SchemaVersion, snap.Version)
	assert.Equal(t, []string{"default.root"}, historyNames(snap.Context))
}

func TestStoredStateThatNoLongerExistsResets(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()))
	require.NoError(t, h.store.Save(context.Background(), sessionID, &domain.Record{
		State:   "legacy.menu",
		Context: storedContext(t, 3),
		Version: runtime.DefaultConfig().SchemaVersion,
	}))

	out := h.send(t, nil)

	assert.Equal(t, "", out.From)
	assert.Equal(t, "default.root", out.To)
	assert.Equal(t, 4, out.Counter, "the context survives")
}

func TestCorruptContextIsPersistenceError(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()))
	require.NoError(t, h.store.Save(context.Background(), sessionID, &domain.Record{
		State:   "default.root",
		Context: []byte("{not json"),
		Version: runtime.DefaultConfig().SchemaVersion,
	}))

	_, err := h.engine.Process(context.Background(), domain.Event{
		Type:    domain.EventMessage,
		Session: domain.NewSession("test", "test", "1"),
	})

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "decode", perr.Op)
	assert.Empty(t, h.channel.Texts(sessionID), "nothing runs on a corrupt session")
}

type failingStore struct {
	*memory.Store
	err error
}

func (s *failingStore) Save(ctx context.Context, id string, rec *domain.Record) error {
	return s.err
}

func TestSaveFailureIsReturned(t *testing.T) {
	store := &failingStore{Store: memory.NewStore(), err: errors.New("disk full")}
	var ended *domain.TurnEvent
	engine := runtime.NewEngine(shopBot(t, newCounter()), session.NewManager(store),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) { ended = e },
		}),
	)

	out, err := engine.Process(context.Background(), domain.Event{
		Type:    domain.EventMessage,
		Session: domain.NewSession("test", "test", "1"),
	})

	assert.Nil(t, out)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "save", perr.Op)
	require.NotNil(t, ended)
	assert.Equal(t, "default.root", ended.ToState)
	assert.ErrorIs(t, ended.Err, store.err)
}

func TestUnknownChannelIsReturned(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()))

	_, err := h.engine.Process(context.Background(), domain.Event{
		Type:    domain.EventMessage,
		Session: domain.NewSession("fb", "messenger", "9"),
	})

	assert.ErrorIs(t, err, domain.ErrUnknownChannel)
}

func TestWithoutChannelsOutputIsDiscarded(t *testing.T) {
	engine := runtime.NewEngine(shopBot(t, newCounter()), session.NewManager(memory.NewStore()))

	out, err := engine.Process(context.Background(), domain.Event{
		Type:    domain.EventMessage,
		Session: domain.NewSession("cli", "", "1"),
	})

	require.NoError(t, err)
	assert.Equal(t, "default.root", out.To)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "Hello!", out.Messages[0].Text)
}

func TestSessionBindingIsRestored(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()))
	h.send(t, nil)

	// A scheduler task may only carry the id.
	_, err := h.engine.Process(context.Background(), domain.Event{
		Type:     domain.EventMessage,
		Session:  domain.Session{ID: sessionID},
		Entities: map[string]any{domain.EntityIntent: "billing"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello!", "Billing here"}, h.channel.Texts(sessionID))
}

func inactivityHarness(t *testing.T) (*harness, *fakeScheduler) {
	t.Helper()
	cfg := runtime.DefaultConfig()
	cfg.InactiveCallbacks = map[string]time.Duration{"default.nudge": time.Minute}
	sched := &fakeScheduler{}
	h := newHarness(t, shopBot(t, newCounter()),
		runtime.WithConfig(cfg),
		runtime.WithScheduler(sched),
		runtime.WithClock(fixedClock()),
	)
	return h, sched
}

func TestInactivityCallbackFires(t *testing.T) {
	h, sched := inactivityHarness(t)

	h.send(t, nil)

	tasks := sched.all()
	require.Len(t, tasks, 1)
	task := tasks[0]
	assert.Equal(t, ports.TaskInactivity, task.Kind)
	assert.Equal(t, "default.nudge", task.Callback)
	assert.Equal(t, 1, task.Counter)
	assert.Equal(t, time.Minute, task.After)
	assert.True(t, fixedClock()().Add(time.Minute).Equal(task.ETA))

	require.NoError(t, h.engine.Deliver(context.Background(), task))

	assert.Equal(t, []string{"Hello!", "Still there?"}, h.channel.Texts(sessionID))
	snap := h.snapshot(t)
	assert.Equal(t, "default.nudge", snap.State)
	inactive, ok := snap.Context.Get(domain.EntityInactive, 0)
	require.True(t, ok)
	assert.InDelta(t, 60.0, inactive, 0.001)
	assert.Len(t, sched.all(), 1, "schedule events do not re-arm inactivity")
}

func TestStaleInactivityCallbackIsDropped(t *testing.T) {
	h, sched := inactivityHarness(t)

	h.send(t, nil)
	h.send(t, map[string]any{domain.EntityIntent: "billing"})
	require.Len(t, sched.all(), 2)

	stale := sched.all()[0]
	require.NoError(t, h.engine.Deliver(context.Background(), stale))

	assert.Equal(t, []string{"Hello!", "Billing here"}, h.channel.Texts(sessionID))
	assert.Equal(t, 2, h.snapshot(t).Context.Counter)

	fresh := sched.all()[1]
	require.NoError(t, h.engine.Deliver(context.Background(), fresh))
	assert.Equal(t, "default.nudge", h.snapshot(t).State)
}

func scheduleBot(t *testing.T) *flow.Registry {
	t.Helper()
	b := dsl.New()
	b.Flow("default").
		State("root").Do(func(ctx context.Context, d flow.Dialog) error {
		return d.ScheduleAfter(ctx, "reminders.root", time.Hour)
	})
	b.Flow("reminders").State("root").Say("Reminder!")
	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

func TestScheduleFromAction(t *testing.T) {
	sched := &fakeScheduler{}
	h := newHarness(t, scheduleBot(t), runtime.WithScheduler(sched), runtime.WithClock(fixedClock()))

	out := h.send(t, nil)

	require.Empty(t, out.Errors)
	tasks := sched.all()
	require.Len(t, tasks, 1)
	assert.Equal(t, ports.TaskSchedule, tasks[0].Kind)
	assert.Equal(t, "reminders.root", tasks[0].Callback)
	assert.True(t, fixedClock()().Add(time.Hour).Equal(tasks[0].ETA))

	require.NoError(t, h.engine.Deliver(context.Background(), tasks[0]))
	assert.Equal(t, "reminders.root", h.snapshot(t).State)
	assert.Equal(t, []string{"Reminder!"}, h.channel.Texts(sessionID))
}

func TestScheduleWithoutSchedulerFailsTheAction(t *testing.T) {
	h := newHarness(t, scheduleBot(t))

	out := h.send(t, nil)

	require.Len(t, out.Errors, 1)
	assert.ErrorIs(t, out.Errors[0], runtime.ErrNoScheduler)
	assert.Equal(t, []string{apology}, h.channel.Texts(sessionID))
}

func TestTestRecordCommands(t *testing.T) {
	rec := recorder.New()
	h := newHarness(t, shopBot(t, newCounter()), runtime.WithRecorder(rec))

	out := h.send(t, map[string]any{domain.EntityTestRecord: "start"})
	assert.Equal(t, "", out.To, "the command does not move the session")
	assert.Contains(t, h.channel.Texts(sessionID)[0], "Recording started")
	assert.True(t, rec.Recording(sessionID))

	h.send(t, map[string]any{"color": "blue"})
	h.send(t, map[string]any{domain.EntityTestRecord: "stop"})

	texts := h.channel.Texts(sessionID)
	tr, err := recorder.Parse([]byte(texts[len(texts)-1]))
	require.NoError(t, err)
	assert.Equal(t, sessionID, tr.Session)
	require.Len(t, tr.Steps, 3)
	require.NotNil(t, tr.Steps[0].User)
	assert.Equal(t, domain.EventMessage, tr.Steps[0].User.Type)
	assert.Equal(t, "blue", tr.Steps[0].User.Entities["color"])
	assert.Equal(t, "default.root", tr.Steps[1].State)
	assert.Equal(t, "Hello!", tr.Steps[2].Bot)
	assert.False(t, rec.Recording(sessionID))
}

func TestTestRecordUsage(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()), runtime.WithRecorder(recorder.New()))

	h.send(t, map[string]any{domain.EntityTestRecord: "pause"})

	assert.Equal(t, []string{"Use /test_record/start/ or /test_record/stop/"}, h.channel.Texts(sessionID))
}

type staticExtractor map[string]any

func (x staticExtractor) Extract(ctx context.Context, raw any) (map[string]any, error) {
	return x, nil
}

func TestRawEventsAreExtracted(t *testing.T) {
	h := newHarness(t, shopBot(t, newCounter()),
		runtime.WithExtractor(staticExtractor{domain.EntityIntent: "cancel_order"}))

	out, err := h.engine.Process(context.Background(), domain.Event{
		Type:    domain.EventMessage,
		Session: domain.NewSession("test", "test", "1"),
		Raw:     map[string]any{"text": "cancel my order"},
	})

	require.NoError(t, err)
	assert.Equal(t, "orders.root", out.To)
}
