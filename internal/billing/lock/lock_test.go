package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	key := SubscriptionKey(42)

	token, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, key, token))
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLocker_ReleaseNeedsMatchingToken(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	key := SubscriptionKey(42)

	token, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, key, "stale-token"))
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock must survive a release with the wrong token")

	require.NoError(t, l.Release(ctx, key, token))
}

func TestLocalLocker_ExpiredLeaseIsReacquirable(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	key := SubscriptionKey(42)

	_, ok, err := l.TryLock(ctx, key, time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ArgumentValidation(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	_, _, err := l.TryLock(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = l.TryLock(ctx, "key", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestRedisLocker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	l := NewRedisLocker(client)
	ctx := context.Background()
	key := SubscriptionKey(42)

	token, ok, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token must not free the lock.
	require.NoError(t, l.Release(ctx, key, "stale-token"))
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, key, token))
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// TTL expiry frees the key on its own.
	srv.FastForward(2 * time.Minute)
	_, ok, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
