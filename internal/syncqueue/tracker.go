package syncqueue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

// HandlerID identifies the tracker in the handled ledger.
const HandlerID = "sync-queue"

// Queue is where changed aggregates are parked for background sync.
type Queue interface {
	QueueAggregate(ctx context.Context, aggregateID, aggregateType string) error
}

// Tracker listens to every event and marks the touched aggregate as
// needing synchronization. Queueing is idempotent, so replays and
// repeated events collapse into one queue entry.
type Tracker struct {
	queue  Queue
	logger *zerolog.Logger
}

func NewTracker(queue Queue, logger *zerolog.Logger) *Tracker {
	return &Tracker{queue: queue, logger: logger}
}

func (t *Tracker) ID() string { return HandlerID }

func (t *Tracker) Handle(ctx context.Context, event eventbus.Event) error {
	aggregateID, aggregateType := eventbus.AggregateOf(event)
	if aggregateType == eventbus.AggregateTypeUnknown {
		return nil
	}

	if err := t.queue.QueueAggregate(ctx, aggregateID, aggregateType); err != nil {
		return err
	}

	t.logger.Debug().
		Str("aggregate_id", aggregateID).
		Str("event_type", event.EventType()).
		Msg("Aggregate queued for sync")
	return nil
}
