package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cv-rag-platform/internal/logger"
)

// releaseScript deletes the lock only while it still holds our token, so a
// slow request cannot free a lock that expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IngestLock is a short lived Redis SETNX lock per content hash.
type IngestLock struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIngestLock(rdb *redis.Client, ttl time.Duration) *IngestLock {
	return &IngestLock{rdb: rdb, ttl: ttl}
}

// Acquire implements ingest.Locker.
func (l *IngestLock) Acquire(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			logger.Warn("Failed to release ingest lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}
