package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes concurrent ingests of the same date (spec.md §5): the
// loser no-ops rather than waits, since a concurrent ingest of the same
// date will itself produce an equivalent catalog state.
type Locker interface {
	// TryLock attempts to acquire the lock for key. ok is false if another
	// holder already has it. release must be called to free the lock when
	// ok is true; it is a no-op otherwise.
	TryLock(ctx context.Context, key string) (release func(), ok bool, err error)
}

// lockTTL bounds how long a crashed holder can block a date; it is well
// above any real ingest's expected duration.
const lockTTL = 10 * time.Minute

// RedisLocker implements Locker with a Redis SET NX PX, the standard
// single-writer lock pattern for a multi-process deployment.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.New().String()
	redisKey := "price-ingest:lock:" + key

	ok, err := l.client.SetNX(ctx, redisKey, token, lockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Best-effort: only clear the key if we still hold it, via the
		// classic compare-and-delete Lua script, so a lock that outlived
		// its TTL and was reacquired by someone else isn't yanked away.
		script := redis.NewScript(`
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			end
			return 0
		`)
		script.Run(context.Background(), l.client, []string{redisKey}, token)
	}
	return release, true, nil
}

// NoopLocker never contends, used when no Redis instance is configured
// (tests, single-process operation).
type NoopLocker struct{}

func (NoopLocker) TryLock(context.Context, string) (func(), bool, error) {
	return func() {}, true, nil
}
