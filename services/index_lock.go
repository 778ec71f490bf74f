package services

import (
	"context"
	"fmt"
	"time"

	"filerepo-extraction/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// IndexLocker guarantees at most one active indexing run per file.
// A second concurrent attempt fails fast with ErrAlreadyIndexing; the
// caller is expected to poll rather than wait.
type IndexLocker interface {
	Acquire(ctx context.Context, fileID string) (release func(), err error)
}

// RedisIndexLocker holds the per-file lock in Redis so the guarantee
// survives multiple service replicas. The TTL caps how long a crashed
// run can keep a file locked.
type RedisIndexLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func NewRedisIndexLocker(rdb *redis.Client, ttl time.Duration) *RedisIndexLocker {
	return &RedisIndexLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisIndexLocker) Acquire(ctx context.Context, fileID string) (func(), error) {
	key := "indexing:lock:" + fileID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire indexing lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrAlreadyIndexing, fileID)
	}

	release := func() {
		// The run's context may already be done; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseLockScript.Run(ctx, l.rdb, []string{key}, token)
	}
	return release, nil
}
