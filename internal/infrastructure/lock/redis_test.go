package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{}) {}

// redisClient connects to REDIS_ADDR or skips the test
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisLocker_ExcludesSecondHolder(t *testing.T) {
	rdb := redisClient(t)
	prefix := "test:" + uuid.NewString() + ":"
	l := NewRedisLocker(rdb, RedisConfig{Prefix: prefix, TTL: 5 * time.Second, Backoff: 10 * time.Millisecond}, nopLogger{})

	release, err := l.Obtain(context.Background(), "control-number:2024")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(ctx, "control-number:2024")
	assert.True(t, errors.Is(err, ErrNotObtained), "got %v", err)

	release()

	again, err := l.Obtain(context.Background(), "control-number:2024")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_KeysAreIndependent(t *testing.T) {
	rdb := redisClient(t)
	prefix := "test:" + uuid.NewString() + ":"
	l := NewRedisLocker(rdb, RedisConfig{Prefix: prefix}, nopLogger{})

	a, err := l.Obtain(context.Background(), "control-number:2024")
	require.NoError(t, err)
	defer a()

	b, err := l.Obtain(context.Background(), "control-number:2025")
	require.NoError(t, err)
	b()
}

func TestRedisLocker_HolderOutlivesTTL(t *testing.T) {
	rdb := redisClient(t)
	prefix := "test:" + uuid.NewString() + ":"
	l := NewRedisLocker(rdb, RedisConfig{Prefix: prefix, TTL: 200 * time.Millisecond, Backoff: 10 * time.Millisecond}, nopLogger{})

	release, err := l.Obtain(context.Background(), "control-number:2024")
	require.NoError(t, err)

	time.Sleep(600 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(ctx, "control-number:2024")
	assert.True(t, errors.Is(err, ErrNotObtained), "got %v", err)

	release()
	release()

	again, err := l.Obtain(context.Background(), "control-number:2024")
	require.NoError(t, err)
	again()
}
