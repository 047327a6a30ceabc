package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

// AppendEnvelopes writes the batch in one transaction, assigning ids
// and sequence numbers. Sequence numbers come from a single MAX query;
// SQLite runs one writer at a time, so they cannot collide.
func (db *DB) AppendEnvelopes(ctx context.Context, envelopes []*eventbus.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxSeq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(created_seq), 0) FROM task_events`).Scan(&maxSeq); err != nil {
		return fmt.Errorf("failed to read last sequence: %w", err)
	}

	nowMs := time.Now().UnixMilli()
	now := time.UnixMilli(nowMs).UTC()

	for i, envelope := range envelopes {
		seq := maxSeq + int64(i) + 1
		result, err := tx.ExecContext(ctx, `
			INSERT INTO task_events (aggregate_id, aggregate_type, event_type, event_data, created_seq, status, attempt_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 'pending', 0, ?, ?)`,
			envelope.AggregateID, envelope.AggregateType, envelope.EventType, envelope.EventData, seq, nowMs, nowMs)
		if err != nil {
			return fmt.Errorf("failed to insert envelope: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get envelope id: %w", err)
		}

		envelope.ID = id
		envelope.CreatedSeq = seq
		envelope.Status = eventbus.StatusPending
		envelope.AttemptCount = 0
		envelope.CreatedAt = now
		envelope.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit envelopes: %w", err)
	}
	return nil
}

// DueEnvelopes returns pending envelopes whose retry time has passed
// (or was never set), ordered so each aggregate's events come out in
// publish order.
func (db *DB) DueEnvelopes(ctx context.Context, now time.Time) ([]*eventbus.Envelope, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, created_seq, status, attempt_count, next_attempt_at, created_at, updated_at
		FROM task_events
		WHERE status = 'pending' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY aggregate_id, created_seq`,
		now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query due envelopes: %w", err)
	}
	defer rows.Close()

	return collectEnvelopes(rows)
}

// DeadEnvelopes returns quarantined envelopes in publish order.
func (db *DB) DeadEnvelopes(ctx context.Context) ([]*eventbus.Envelope, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, created_seq, status, attempt_count, next_attempt_at, created_at, updated_at
		FROM task_events
		WHERE status = 'dead'
		ORDER BY created_seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead envelopes: %w", err)
	}
	defer rows.Close()

	return collectEnvelopes(rows)
}

// GetEnvelope returns a single envelope by id.
func (db *DB) GetEnvelope(ctx context.Context, id int64) (*eventbus.Envelope, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, created_seq, status, attempt_count, next_attempt_at, created_at, updated_at
		FROM task_events
		WHERE id = ?`,
		id)

	envelope, err := scanEnvelope(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope %d: %w", id, err)
	}
	return envelope, nil
}

// MarkProcessing transitions a pending envelope to processing.
func (db *DB) MarkProcessing(ctx context.Context, id int64) error {
	return db.transition(ctx, `
		UPDATE task_events
		SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		time.Now().UnixMilli(), id)
}

// CompleteEnvelope finishes a processing envelope, counting the attempt.
func (db *DB) CompleteEnvelope(ctx context.Context, id int64) error {
	return db.transition(ctx, `
		UPDATE task_events
		SET status = 'done', attempt_count = attempt_count + 1, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		time.Now().UnixMilli(), id)
}

// RescheduleEnvelope returns a processing envelope to pending with the
// time of its next attempt, counting the failed attempt.
func (db *DB) RescheduleEnvelope(ctx context.Context, id int64, nextAttemptAt time.Time) error {
	return db.transition(ctx, `
		UPDATE task_events
		SET status = 'pending', attempt_count = attempt_count + 1, next_attempt_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		nextAttemptAt.UnixMilli(), time.Now().UnixMilli(), id)
}

// DeadLetterEnvelope quarantines a processing envelope, counting the
// final attempt. Dead rows are never picked up again.
func (db *DB) DeadLetterEnvelope(ctx context.Context, id int64) error {
	return db.transition(ctx, `
		UPDATE task_events
		SET status = 'dead', attempt_count = attempt_count + 1, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		time.Now().UnixMilli(), id)
}

// ReclaimStuck flips processing envelopes untouched since olderThan
// back to pending so a later pass can retry them. Attempt counts stay
// as they are.
func (db *DB) ReclaimStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `
		UPDATE task_events
		SET status = 'pending', updated_at = ?
		WHERE status = 'processing' AND updated_at < ?`,
		time.Now().UnixMilli(), olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck envelopes: %w", err)
	}
	return result.RowsAffected()
}

// CountByStatus returns envelope counts grouped by status.
func (db *DB) CountByStatus(ctx context.Context) (map[eventbus.Status]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM task_events GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count envelopes: %w", err)
	}
	defer rows.Close()

	counts := make(map[eventbus.Status]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[eventbus.Status(status)] = count
	}
	return counts, rows.Err()
}

// transition runs a guarded status update. Zero affected rows means the
// envelope was not in the state the WHERE clause expects.
func (db *DB) transition(ctx context.Context, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update envelope: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrConcurrentModification
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnvelope(row rowScanner) (*eventbus.Envelope, error) {
	var (
		envelope      eventbus.Envelope
		status        string
		nextAttemptAt sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)

	err := row.Scan(
		&envelope.ID,
		&envelope.AggregateID,
		&envelope.AggregateType,
		&envelope.EventType,
		&envelope.EventData,
		&envelope.CreatedSeq,
		&status,
		&envelope.AttemptCount,
		&nextAttemptAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	envelope.Status = eventbus.Status(status)
	if nextAttemptAt.Valid {
		next := time.UnixMilli(nextAttemptAt.Int64).UTC()
		envelope.NextAttemptAt = &next
	}
	envelope.CreatedAt = time.UnixMilli(createdAt).UTC()
	envelope.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &envelope, nil
}

func collectEnvelopes(rows *sql.Rows) ([]*eventbus.Envelope, error) {
	var envelopes []*eventbus.Envelope
	for rows.Next() {
		envelope, err := scanEnvelope(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan envelope: %w", err)
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes, rows.Err()
}
