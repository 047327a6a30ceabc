package eventbus

import "time"

// Status is the lifecycle state of a stored envelope. Transitions only
// run pending → processing → (done | pending | dead); done and dead
// rows are never touched again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusDead       Status = "dead"
)

// Envelope is the durable record wrapping one published event together
// with its delivery bookkeeping.
type Envelope struct {
	ID            int64
	AggregateID   string
	AggregateType string
	EventType     string
	EventData     []byte

	// CreatedSeq is the publish-time logical clock; it orders events
	// within an aggregate independent of wall time.
	CreatedSeq int64

	Status       Status
	AttemptCount int

	// NextAttemptAt is nil until the first failed attempt.
	NextAttemptAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
