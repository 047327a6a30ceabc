package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MarkHandled records that a handler finished an envelope. The primary
// key absorbs replays, so recording the same pair twice is a no-op.
func (db *DB) MarkHandled(ctx context.Context, eventID int64, handlerID string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO handled_events (event_id, handler_id)
		VALUES (?, ?)
		ON CONFLICT (event_id, handler_id) DO NOTHING`,
		eventID, handlerID)
	if err != nil {
		return fmt.Errorf("failed to record handled event: %w", err)
	}
	return nil
}

// WasHandled reports whether the handler already finished the envelope.
func (db *DB) WasHandled(ctx context.Context, eventID int64, handlerID string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM handled_events
		WHERE event_id = ? AND handler_id = ?`,
		eventID, handlerID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check handled event: %w", err)
	}
	return true, nil
}
