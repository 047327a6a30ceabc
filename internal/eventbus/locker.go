package eventbus

import (
	"context"
	"errors"
)

// ErrLockHeld is returned when another context currently holds the
// requested lock. Callers treat it as "skip this pass", not as a
// failure.
var ErrLockHeld = errors.New("lock already held")

// Locker provides mutual exclusion around a processing pass. The bus
// only depends on this contract; RedisLocker and LeaseLocker are the
// two implementations.
type Locker interface {
	// WithLock runs fn while holding the named lock and releases it
	// afterwards, whether fn succeeded or not. Returns ErrLockHeld
	// without running fn when the lock is unavailable.
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
