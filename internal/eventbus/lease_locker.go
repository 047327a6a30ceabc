package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LeaseStore persists named leases with an expiry. An expired lease
// counts as absent and may be overwritten by the next acquirer.
type LeaseStore interface {
	// AcquireLease claims the named lease for owner until expiresAt.
	// Returns false when an unexpired lease already exists.
	AcquireLease(ctx context.Context, name, owner string, expiresAt, now time.Time) (bool, error)

	// ReleaseLease drops the lease if owner still holds it.
	ReleaseLease(ctx context.Context, name, owner string) error
}

// LeaseLocker is the fallback Locker used when no Redis is configured:
// a lease row in the local store stands in for the mutex. The lease
// must outlive the longest expected pass; its expiry bounds how long a
// crashed holder can block everyone else.
type LeaseLocker struct {
	store  LeaseStore
	lease  time.Duration
	logger *zerolog.Logger
	now    func() time.Time
}

// NewLeaseLocker creates a lease-backed locker. A non-positive lease
// falls back to 30 seconds.
func NewLeaseLocker(store LeaseStore, lease time.Duration, logger *zerolog.Logger) *LeaseLocker {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &LeaseLocker{
		store:  store,
		lease:  lease,
		logger: logger,
		now:    time.Now,
	}
}

// WithLock claims the named lease for the duration of fn. Returns
// ErrLockHeld when another owner holds an unexpired lease.
func (l *LeaseLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	owner := uuid.NewString()
	now := l.now()

	acquired, err := l.store.AcquireLease(ctx, name, owner, now.Add(l.lease), now)
	if err != nil {
		return fmt.Errorf("failed to acquire lease %q: %w", name, err)
	}
	if !acquired {
		return ErrLockHeld
	}

	defer func() {
		// Release with a fresh context so a cancelled pass still
		// cleans up its lease.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.ReleaseLease(releaseCtx, name, owner); err != nil {
			l.logger.Error().Err(err).Str("lock", name).Msg("Failed to release lease")
		}
	}()

	return fn(ctx)
}
