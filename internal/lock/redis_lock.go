package lock

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lease taken over by another holder is never released by us.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const acquirePollInterval = 100 * time.Millisecond

// RedisLocker implements Locker on a shared Redis instance using
// SET NX PX with a per-lease token.
type RedisLocker struct {
	client *redis.Client
	logger *logrus.Entry
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(client *redis.Client, logger *logrus.Entry) *RedisLocker {
	return &RedisLocker{
		client: client,
		logger: logger.WithField("component", "redis-locker"),
	}
}

// Acquire polls SET NX until the wait budget runs out.
func (l *RedisLocker) Acquire(ctx context.Context, key string, wait, lease time.Duration) (Lease, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &redisLease{client: l.client, logger: l.logger, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

type redisLease struct {
	client   *redis.Client
	logger   *logrus.Entry
	key      string
	token    string
	released sync.Once
}

func (l *redisLease) Release(ctx context.Context) {
	l.released.Do(func() {
		if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
			// Lease expiry will clean up; nothing more to do here.
			l.logger.Warnf("Failed to release lock %s: %v", l.key, err)
		}
	})
}
