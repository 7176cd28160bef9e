package locker_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/journeys/pkg/locker"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T) (*locker.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	l := locker.NewRedis(client, "test:")
	t.Cleanup(func() { _ = l.Close() })

	return l, mr
}

func TestRedis_TryLock(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "jny_1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:jny_1"))

	_, err = l.TryLock(ctx, "jny_1", time.Minute)
	require.ErrorIs(t, err, locker.ErrLocked)

	other, err := l.TryLock(ctx, "jny_2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:jny_1"))

	again, err := l.TryLock(ctx, "jny_1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedis_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	stale, err := l.TryLock(ctx, "jny_1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	current, err := l.TryLock(ctx, "jny_1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("test:jny_1"), "the stale holder must not delete the new lock")

	require.NoError(t, current(ctx))
	assert.False(t, mr.Exists("test:jny_1"))
}

func TestRedis_ConnectionError(t *testing.T) {
	l, mr := newRedisLocker(t)
	mr.Close()

	_, err := l.TryLock(context.Background(), "jny_1", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, locker.ErrLocked)
}

func TestNewRedisFromURL(t *testing.T) {
	_, err := locker.NewRedisFromURL("://bad", "")
	require.Error(t, err)

	mr := miniredis.RunT(t)

	l, err := locker.NewRedisFromURL("redis://"+mr.Addr(), "")
	require.NoError(t, err)

	defer func() { _ = l.Close() }()

	unlock, err := l.TryLock(context.Background(), "jny_1", 0)
	require.NoError(t, err)
	assert.True(t, mr.Exists(locker.DefaultPrefix+"jny_1"))
	assert.Equal(t, locker.DefaultTTL, mr.TTL(locker.DefaultPrefix+"jny_1"))
	require.NoError(t, unlock(context.Background()))
}

func TestMemory_TryLock(t *testing.T) {
	m := locker.NewMemory()
	ctx := context.Background()

	unlock, err := m.TryLock(ctx, "jny_1", time.Minute)
	require.NoError(t, err)

	_, err = m.TryLock(ctx, "jny_1", time.Minute)
	require.ErrorIs(t, err, locker.ErrLocked)

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx))

	again, err := m.TryLock(ctx, "jny_1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemory_Expiry(t *testing.T) {
	m := locker.NewMemory()
	ctx := context.Background()

	stale, err := m.TryLock(ctx, "jny_1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	current, err := m.TryLock(ctx, "jny_1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))

	_, err = m.TryLock(ctx, "jny_1", time.Minute)
	require.ErrorIs(t, err, locker.ErrLocked)

	require.NoError(t, current(ctx))
}

var (
	_ locker.Locker = (*locker.Redis)(nil)
	_ locker.Locker = (*locker.Memory)(nil)
)
