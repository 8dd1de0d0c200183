package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still carries our token, so a
// holder whose lease expired cannot free somebody else's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLua = redis.NewScript(releaseScript)

const (
	defaultLease = 10 * time.Second
	defaultRetry = 25 * time.Millisecond
)

// RedisLocker is a lease-based lock shared by every instance pointing at the
// same Redis. A crashed holder's lock expires after the lease.
type RedisLocker struct {
	rdb    redis.UniversalClient
	prefix string
	lease  time.Duration
	retry  time.Duration
	logger logging.Logger
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string, logger logging.Logger) *RedisLocker {
	return &RedisLocker{
		rdb:    rdb,
		prefix: prefix,
		lease:  defaultLease,
		retry:  defaultRetry,
		logger: logger,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, k, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}

		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// the caller's ctx may already be cancelled
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseLua.Run(rctx, l.rdb, []string{k}, token).Err(); err != nil {
			l.logger.Warn(rctx, "releasing lock failed", "key", k, "error", err)
		}
	}, nil
}
