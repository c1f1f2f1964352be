package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/golem/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_ExclusiveUntilUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "golem:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tg_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("golem:lock:tg_1"))

	waitCtx, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "tg_1", time.Minute)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("golem:lock:tg_1"))

	unlock, err = locker.Lock(ctx, "tg_1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_UnlockDoesNotStealForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "tg_1", time.Second)
	require.NoError(t, err)

	// Our lease expires and another holder takes the key.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:tg_1", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("lock:tg_1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
