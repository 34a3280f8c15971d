package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLock_SingleHolder(t *testing.T) {
	_, client := newTestClient(t)
	lm := NewLockManager(client, "camrelay:")
	ctx := context.Background()

	first := lm.NewLock("sweep:reap", time.Minute)
	second := lm.NewLock("sweep:reap", time.Minute)

	ok, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx))

	ok, err = second.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}

func TestLock_UnlockDoesNotReleaseForeignLease(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()

	l := NewLock(client, "camrelay:lock:x", time.Minute)
	ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// lease expired and someone else took it
	require.NoError(t, mr.Set("camrelay:lock:x", "other"))

	require.NoError(t, l.Unlock(ctx))
	v, err := mr.Get("camrelay:lock:x")
	require.NoError(t, err)
	assert.Equal(t, "other", v)
}

func TestLock_UnlockWithoutLockIsNoop(t *testing.T) {
	_, client := newTestClient(t)
	assert.NoError(t, NewLock(client, "k", time.Second).Unlock(context.Background()))
}
