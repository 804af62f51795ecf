package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestIngestLock(t *testing.T) {
	rdb := newTestRedis(t)
	lock := NewIngestLock(rdb, 5*time.Second)
	ctx := context.Background()
	key := "ingest:lock:test-" + uuid.NewString()

	release, ok, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release2, ok, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

func TestIngestLockUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()

	_, ok, err := NewIngestLock(rdb, time.Second).Acquire(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
