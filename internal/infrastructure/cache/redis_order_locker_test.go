package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/order"
	"github.com/pos/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisLocker(t *testing.T) (*RedisOrderLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisOrderLockerWithClient(client, "test:lock:", zap.NewNop()), mr
}

func TestRedisOrderLocker_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("holds the lock until released", func(t *testing.T) {
		locker, mr := newTestRedisLocker(t)
		id := uuid.New()

		release, err := locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:lock:"+id.String()))
		assert.Equal(t, time.Minute, mr.TTL("test:lock:"+id.String()))

		_, err = locker.Acquire(ctx, id, time.Minute)
		assert.ErrorIs(t, err, order.ErrLockNotAcquired)

		release()
		assert.False(t, mr.Exists("test:lock:"+id.String()))

		release2, err := locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)
		release2()
	})

	t.Run("expired lock can be re-acquired and stale release keeps it", func(t *testing.T) {
		locker, mr := newTestRedisLocker(t)
		id := uuid.New()

		staleRelease, err := locker.Acquire(ctx, id, time.Second)
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)
		_, err = locker.Acquire(ctx, id, time.Minute)
		require.NoError(t, err)

		staleRelease()
		assert.True(t, mr.Exists("test:lock:"+id.String()), "token check protects the new holder")
	})

	t.Run("redis failure is an error", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer client.Close()
		locker := NewRedisOrderLockerWithClient(client, "", nil)

		_, err := locker.Acquire(ctx, uuid.New(), time.Minute)
		require.Error(t, err)
		assert.NotErrorIs(t, err, order.ErrLockNotAcquired)
	})
}

func TestOrderLockerFactory_CreateLocker(t *testing.T) {
	t.Run("in-memory when Redis is disabled", func(t *testing.T) {
		f := NewOrderLockerFactory(configRedis(false, "localhost", 6379))
		locker, err := f.CreateLocker()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryOrderLocker{}, locker)
	})

	t.Run("Redis when enabled and reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		f := NewOrderLockerFactory(configRedis(true, mr.Host(), mustPort(t, mr)))
		locker, err := f.CreateLocker()
		require.NoError(t, err)
		require.IsType(t, &RedisOrderLocker{}, locker)
		_ = locker.(*RedisOrderLocker).Close()
	})

	t.Run("falls back when Redis is unreachable", func(t *testing.T) {
		f := NewOrderLockerFactory(configRedis(true, "127.0.0.1", 1))
		locker, err := f.CreateLocker()
		require.NoError(t, err)
		assert.IsType(t, &InMemoryOrderLocker{}, locker)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewOrderLockerFactory(configRedis(true, "127.0.0.1", 1), WithInMemoryFallback(false))
		_, err := f.CreateLocker()
		assert.Error(t, err)
	})
}

func TestRedisOrderLocker_Ping(t *testing.T) {
	locker, mr := newTestRedisLocker(t)
	require.NoError(t, locker.Ping(context.Background()))

	mr.Close()
	assert.Error(t, locker.Ping(context.Background()))
}

func configRedis(enabled bool, host string, port int) config.RedisConfig {
	return config.RedisConfig{Enabled: enabled, Host: host, Port: port}
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
