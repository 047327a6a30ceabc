package eventbus

import (
	"context"
	"time"
)

// EnvelopeStore is the durable table of event envelopes.
type EnvelopeStore interface {
	// AppendEnvelopes stores the batch atomically, assigning each
	// envelope its id and publish sequence number. Either every
	// envelope is written or none are.
	AppendEnvelopes(ctx context.Context, envelopes []*Envelope) error

	// DueEnvelopes returns pending envelopes whose next attempt time
	// is unset or has passed, ordered by (aggregate id, publish seq).
	DueEnvelopes(ctx context.Context, now time.Time) ([]*Envelope, error)

	// MarkProcessing transitions a pending envelope to processing.
	MarkProcessing(ctx context.Context, id int64) error

	// CompleteEnvelope transitions a processing envelope to done and
	// increments its attempt count.
	CompleteEnvelope(ctx context.Context, id int64) error

	// RescheduleEnvelope returns a processing envelope to pending,
	// increments its attempt count and records when it is due again.
	RescheduleEnvelope(ctx context.Context, id int64, nextAttemptAt time.Time) error

	// DeadLetterEnvelope transitions a processing envelope to dead and
	// increments its attempt count.
	DeadLetterEnvelope(ctx context.Context, id int64) error

	// ReclaimStuck returns envelopes left in processing before the
	// cutoff back to pending and reports how many rows changed.
	ReclaimStuck(ctx context.Context, olderThan time.Time) (int64, error)

	// CountByStatus returns envelope counts grouped by status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// HandledLedger records which (envelope, handler) pairs completed
// successfully. A recorded pair is never delivered again.
type HandledLedger interface {
	// MarkHandled records a successful delivery. Recording the same
	// pair twice is a no-op.
	MarkHandled(ctx context.Context, eventID int64, handlerID string) error

	// WasHandled reports whether the pair was already recorded.
	WasHandled(ctx context.Context, eventID int64, handlerID string) (bool, error)
}

// ProcessingStats is a point-in-time count of envelopes by status,
// computed fresh on every call.
type ProcessingStats struct {
	TotalEvents      int64 `json:"total_events"`
	PendingEvents    int64 `json:"pending_events"`
	ProcessingEvents int64 `json:"processing_events"`
	DoneEvents       int64 `json:"done_events"`
	DeadLetterEvents int64 `json:"dead_letter_events"`
}
