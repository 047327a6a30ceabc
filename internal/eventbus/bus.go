package eventbus

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds settings for the bus and its processing loop.
type Config struct {
	// Interval is how often the processing loop wakes up.
	// Default: 5 seconds.
	Interval time.Duration

	// LockName is the name under which passes acquire the processing
	// lock. Every cooperating context must use the same name.
	// Default: "lift:event-processing".
	LockName string

	// Backoff is the retry policy for failed envelopes.
	Backoff Backoff

	// StuckTimeout is how long an envelope may sit in processing
	// before a pass assumes its holder crashed and returns it to
	// pending. Must exceed the lock lease. Negative disables
	// reclamation. Default: 2 minutes.
	StuckTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:     5 * time.Second,
		LockName:     "lift:event-processing",
		Backoff:      DefaultBackoff(),
		StuckTimeout: 2 * time.Minute,
	}
}

// Bus is the persistent event bus facade. Publish durably appends
// envelopes and returns; delivery happens later inside lock-guarded
// processing passes, driven by the loop or by ProcessOnce.
type Bus struct {
	config   *Config
	store    EnvelopeStore
	ledger   HandledLedger
	locker   Locker
	codec    *Codec
	registry *HandlerRegistry
	logger   *zerolog.Logger

	// rng feeds backoff jitter; it is only touched inside the pass,
	// which the lock serializes.
	rng *rand.Rand
	now func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a bus. The registry starts empty; consumers should
// subscribe before the loop starts, since events processed earlier are
// not re-delivered to late subscribers.
func New(
	config *Config,
	store EnvelopeStore,
	ledger HandledLedger,
	locker Locker,
	codec *Codec,
	logger *zerolog.Logger,
) *Bus {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval == 0 {
		config.Interval = 5 * time.Second
	}
	if config.LockName == "" {
		config.LockName = "lift:event-processing"
	}
	if config.Backoff.BaseDelay == 0 {
		config.Backoff.BaseDelay = 1 * time.Second
	}
	if config.Backoff.MaxAttempts == 0 {
		config.Backoff.MaxAttempts = 5
	}
	if config.StuckTimeout == 0 {
		config.StuckTimeout = 2 * time.Minute
	}

	return &Bus{
		config:   config,
		store:    store,
		ledger:   ledger,
		locker:   locker,
		codec:    codec,
		registry: NewHandlerRegistry(),
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Publish durably records a single event for later delivery.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	return b.PublishAll(ctx, []Event{event})
}

// PublishAll appends one pending envelope per event in a single atomic
// batch. Every event is serialized before anything is written, so a
// marshal failure leaves the store untouched. No handler runs inline;
// delivery is the processing loop's job.
func (b *Bus) PublishAll(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	envelopes := make([]*Envelope, 0, len(events))
	for _, event := range events {
		data, err := event.MarshalPayload()
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.EventType(), err)
		}

		aggregateID, aggregateType := AggregateOf(event)
		envelopes = append(envelopes, &Envelope{
			AggregateID:   aggregateID,
			AggregateType: aggregateType,
			EventType:     event.EventType(),
			EventData:     data,
			Status:        StatusPending,
		})
	}

	if err := b.store.AppendEnvelopes(ctx, envelopes); err != nil {
		return fmt.Errorf("failed to append envelopes: %w", err)
	}

	eventsPublished.Add(float64(len(envelopes)))
	b.logger.Debug().Int("count", len(envelopes)).Msg("Events published")
	return nil
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	return b.registry.Subscribe(eventType, handler)
}

// SubscribeToAll registers a handler invoked for every processed
// event, with the same per-handler idempotency guarantee.
func (b *Bus) SubscribeToAll(handler Handler) *Subscription {
	return b.registry.SubscribeToAll(handler)
}

// GetProcessingStats returns fresh envelope counts by status.
func (b *Bus) GetProcessingStats(ctx context.Context) (ProcessingStats, error) {
	counts, err := b.store.CountByStatus(ctx)
	if err != nil {
		return ProcessingStats{}, fmt.Errorf("failed to count envelopes: %w", err)
	}

	stats := ProcessingStats{
		PendingEvents:    counts[StatusPending],
		ProcessingEvents: counts[StatusProcessing],
		DoneEvents:       counts[StatusDone],
		DeadLetterEvents: counts[StatusDead],
	}
	stats.TotalEvents = stats.PendingEvents + stats.ProcessingEvents + stats.DoneEvents + stats.DeadLetterEvents

	for status, count := range counts {
		queueDepth.WithLabelValues(string(status)).Set(float64(count))
	}

	return stats, nil
}

// StartProcessingLoop launches the periodic loop. Starting an already
// running loop is a no-op.
func (b *Bus) StartProcessingLoop(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.stopCh = make(chan struct{})
	stopCh := b.stopCh
	b.mu.Unlock()

	b.wg.Add(1)
	go b.loop(ctx, stopCh)

	b.logger.Info().
		Dur("interval", b.config.Interval).
		Str("lock", b.config.LockName).
		Msg("Event processing loop started")
}

// StopProcessingLoop stops the loop and waits for an in-flight pass to
// finish. Stopping a loop that is not running is a no-op.
func (b *Bus) StopProcessingLoop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	stopCh := b.stopCh
	b.mu.Unlock()

	close(stopCh)
	b.wg.Wait()

	b.logger.Info().Msg("Event processing loop stopped")
}

func (b *Bus) loop(ctx context.Context, stopCh chan struct{}) {
	defer b.wg.Done()

	// Run immediately on start
	b.runPass(ctx)

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			b.runPass(ctx)
		}
	}
}

// runPass executes one pass, folding lock contention into a debug log:
// another context doing the work is normal operation, not a failure.
func (b *Bus) runPass(ctx context.Context) {
	err := b.ProcessOnce(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, ErrLockHeld) {
		b.logger.Debug().Msg("Processing pass skipped: lock held elsewhere")
		return
	}
	b.logger.Error().Err(err).Msg("Processing pass failed")
}
