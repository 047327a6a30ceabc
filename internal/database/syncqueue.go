package database

import (
	"context"
	"fmt"
	"time"
)

// SyncEntry is one aggregate waiting for background synchronization.
type SyncEntry struct {
	AggregateID   string
	AggregateType string
	QueuedAt      time.Time
}

// QueueAggregate marks an aggregate as changed. Queueing it again
// before it syncs just refreshes the timestamp.
func (db *DB) QueueAggregate(ctx context.Context, aggregateID, aggregateType string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_queue (aggregate_id, aggregate_type)
		VALUES (?, ?)
		ON CONFLICT (aggregate_id, aggregate_type) DO UPDATE SET queued_at = CURRENT_TIMESTAMP`,
		aggregateID, aggregateType)
	if err != nil {
		return fmt.Errorf("failed to queue aggregate: %w", err)
	}
	return nil
}

// PendingSync returns queued aggregates, oldest first.
func (db *DB) PendingSync(ctx context.Context) ([]SyncEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT aggregate_id, aggregate_type, queued_at
		FROM sync_queue
		ORDER BY queued_at, aggregate_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync queue: %w", err)
	}
	defer rows.Close()

	var entries []SyncEntry
	for rows.Next() {
		var entry SyncEntry
		if err := rows.Scan(&entry.AggregateID, &entry.AggregateType, &entry.QueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ClearSynced removes an aggregate from the queue after its sync ran.
func (db *DB) ClearSynced(ctx context.Context, aggregateID, aggregateType string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM sync_queue
		WHERE aggregate_id = ? AND aggregate_type = ?`,
		aggregateID, aggregateType)
	if err != nil {
		return fmt.Errorf("failed to clear synced aggregate: %w", err)
	}
	return nil
}
