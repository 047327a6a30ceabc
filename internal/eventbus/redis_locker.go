package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lock key only while the caller still owns
// it, so a holder whose lease expired cannot drop a lock someone else
// re-acquired in the meantime.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is the preferred Locker when Redis is available: SET NX
// with a TTL gives lease semantics without touching the local store.
type RedisLocker struct {
	client *redis.Client
	lease  time.Duration
	logger *zerolog.Logger
}

// NewRedisLocker creates a Redis-backed locker. A non-positive lease
// falls back to 30 seconds.
func NewRedisLocker(client *redis.Client, lease time.Duration, logger *zerolog.Logger) *RedisLocker {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		lease:  lease,
		logger: logger,
	}
}

// WithLock claims the named key for the duration of fn. Returns
// ErrLockHeld when the key is already set.
func (l *RedisLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	owner := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, name, owner, l.lease).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire redis lock %q: %w", name, err)
	}
	if !acquired {
		return ErrLockHeld
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{name}, owner).Err(); err != nil {
			l.logger.Error().Err(err).Str("lock", name).Msg("Failed to release redis lock")
		}
	}()

	return fn(ctx)
}
