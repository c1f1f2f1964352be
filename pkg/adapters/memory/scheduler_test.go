package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/golem/pkg/adapters/memory"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestScheduler_FiresAfterDelay(t *testing.T) {
	defer goleak.VerifyNone(t)

	sched := memory.NewScheduler()
	defer sched.Close()

	var mu sync.Mutex
	var got []ports.Task
	done := make(chan struct{})
	sched.Bind(func(ctx context.Context, task ports.Task) error {
		mu.Lock()
		got = append(got, task)
		mu.Unlock()
		close(done)
		return nil
	})

	err := sched.Enqueue(context.Background(), ports.Task{
		Kind:     ports.TaskSchedule,
		Session:  domain.NewSession("t", "test", "1"),
		Callback: "reminders.root",
		ETA:      time.Now().Add(20 * time.Millisecond),
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "reminders.root", got[0].Callback)
	assert.NotEmpty(t, got[0].ID, "scheduler assigns an id")
}

func TestScheduler_CloseCancelsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	sched := memory.NewScheduler()
	fired := make(chan struct{}, 1)
	sched.Bind(func(ctx context.Context, task ports.Task) error {
		fired <- struct{}{}
		return nil
	})

	require.NoError(t, sched.Enqueue(context.Background(), ports.Task{
		Callback: "later.root",
		ETA:      time.Now().Add(time.Hour),
	}))
	assert.Equal(t, 1, sched.Pending())

	require.NoError(t, sched.Close())
	assert.Equal(t, 0, sched.Pending())
	assert.Empty(t, fired)

	err := sched.Enqueue(context.Background(), ports.Task{Callback: "x.root"})
	assert.ErrorIs(t, err, memory.ErrSchedulerClosed)
}
