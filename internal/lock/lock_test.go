package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Locker = (*MemoryLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	unlock, err := l.TryLock(ctx, "stem")
	require.NoError(t, err)

	_, err = l.TryLock(ctx, "stem")
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.TryLock(ctx, "other")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	again, err := l.TryLock(ctx, "stem")
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(0, 0)
	l := NewMemoryLocker(time.Minute)
	l.now = func() time.Time { return now }

	stale, err := l.TryLock(ctx, "stem")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := l.TryLock(ctx, "stem")
	require.NoError(t, err, "expired lease can be taken over")

	// Releasing the stale lease must not free the new holder.
	require.NoError(t, stale(ctx))
	_, err = l.TryLock(ctx, "stem")
	assert.ErrorIs(t, err, ErrLocked)
	require.NoError(t, fresh(ctx))
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.TryLock(ctx, "stem"); err == nil {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), acquired.Load())
}

func TestMemoryLocker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryLocker(time.Minute).TryLock(ctx, "stem")
	assert.ErrorIs(t, err, context.Canceled)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	l := NewRedisLocker(client, time.Minute)

	unlock, err := l.TryLock(ctx, "stem")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"stem"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"stem"))

	_, err = NewRedisLocker(client, time.Minute).TryLock(ctx, "stem")
	assert.ErrorIs(t, err, ErrLocked, "a second replica sees the lease")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists(keyPrefix+"stem"))
}

func TestRedisLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	l := NewRedisLocker(client, time.Minute)

	stale, err := l.TryLock(ctx, "stem")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	fresh, err := l.TryLock(ctx, "stem")
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(keyPrefix+"stem"))
	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists(keyPrefix+"stem"))
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err := NewRedisClient(context.Background(), host, port)
	assert.Error(t, err)
}
