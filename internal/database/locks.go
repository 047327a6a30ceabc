package database

import (
	"context"
	"fmt"
	"time"
)

// AcquireLease takes the named lease for owner until expiresAt. The
// upsert only overwrites a lease that expired before now, so a live
// lease held by someone else stays in place and the call reports false.
func (db *DB) AcquireLease(ctx context.Context, name, owner string, expiresAt, now time.Time) (bool, error) {
	result, err := db.ExecContext(ctx, `
		INSERT INTO locks (id, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?`,
		name, owner, expiresAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check lease result: %w", err)
	}
	return affected == 1, nil
}

// ReleaseLease drops the lease, but only while owner still holds it.
// Releasing a lease that expired and moved on is a silent no-op.
func (db *DB) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM locks WHERE id = ? AND owner = ?`, name, owner)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
