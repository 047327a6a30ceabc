package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProcessOnce runs exactly one processing pass: acquire the lock, pull
// due envelopes, dispatch them, record outcomes, release. It is safe
// to call concurrently with the loop; whoever loses the lock gets
// ErrLockHeld and should treat it as "nothing to do".
func (b *Bus) ProcessOnce(ctx context.Context) error {
	start := time.Now()

	err := b.locker.WithLock(ctx, b.config.LockName, b.pass)

	switch {
	case err == nil:
		processingPasses.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrLockHeld):
		processingPasses.WithLabelValues("lock_held").Inc()
	default:
		processingPasses.WithLabelValues("error").Inc()
	}
	passDuration.Observe(time.Since(start).Seconds())

	return err
}

// pass runs with the processing lock held.
func (b *Bus) pass(ctx context.Context) error {
	now := b.now()

	if b.config.StuckTimeout > 0 {
		reclaimed, err := b.store.ReclaimStuck(ctx, now.Add(-b.config.StuckTimeout))
		if err != nil {
			return fmt.Errorf("failed to reclaim stuck envelopes: %w", err)
		}
		if reclaimed > 0 {
			b.logger.Warn().Int64("count", reclaimed).Msg("Reclaimed envelopes stuck in processing")
		}
	}

	due, err := b.store.DueEnvelopes(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to select due envelopes: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	b.logger.Debug().Int("count", len(due)).Msg("Processing due envelopes")

	for _, envelope := range due {
		// Check context cancellation between envelopes; an envelope
		// that already started is finished before we bail out.
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Processing pass interrupted")
			return ctx.Err()
		default:
		}

		b.processEnvelope(ctx, envelope)
	}

	return nil
}

// processEnvelope drives one envelope through a single attempt and
// records the outcome. Storage errors are logged, not returned: one
// bad envelope must not abort the rest of the pass.
func (b *Bus) processEnvelope(ctx context.Context, envelope *Envelope) {
	if err := b.store.MarkProcessing(ctx, envelope.ID); err != nil {
		b.logger.Error().Err(err).Int64("envelope_id", envelope.ID).Msg("Failed to mark envelope processing")
		return
	}

	failed := b.dispatch(ctx, envelope)
	attempt := envelope.AttemptCount + 1

	switch {
	case !failed:
		if err := b.store.CompleteEnvelope(ctx, envelope.ID); err != nil {
			b.logger.Error().Err(err).Int64("envelope_id", envelope.ID).Msg("Failed to complete envelope")
			return
		}
		eventsProcessed.WithLabelValues("done").Inc()

	case b.config.Backoff.Exhausted(attempt):
		if err := b.store.DeadLetterEnvelope(ctx, envelope.ID); err != nil {
			b.logger.Error().Err(err).Int64("envelope_id", envelope.ID).Msg("Failed to dead-letter envelope")
			return
		}
		eventsProcessed.WithLabelValues("dead").Inc()
		b.logger.Error().
			Int64("envelope_id", envelope.ID).
			Str("event_type", envelope.EventType).
			Int("attempts", attempt).
			Msg("Envelope moved to dead letter")

	default:
		next := b.now().Add(b.config.Backoff.Delay(attempt, b.rng))
		if err := b.store.RescheduleEnvelope(ctx, envelope.ID, next); err != nil {
			b.logger.Error().Err(err).Int64("envelope_id", envelope.ID).Msg("Failed to reschedule envelope")
			return
		}
		eventsProcessed.WithLabelValues("retried").Inc()
		b.logger.Debug().
			Int64("envelope_id", envelope.ID).
			Int("attempt", attempt).
			Time("next_attempt_at", next).
			Msg("Envelope rescheduled")
	}
}

// dispatch decodes the envelope and invokes every matching handler,
// skipping pairs the ledger already recorded. Reports whether any part
// of delivery failed.
func (b *Bus) dispatch(ctx context.Context, envelope *Envelope) bool {
	event, err := b.codec.Decode(envelope.EventType, envelope.EventData)
	if err != nil {
		b.logger.Error().Err(err).
			Int64("envelope_id", envelope.ID).
			Str("event_type", envelope.EventType).
			Msg("Failed to decode envelope")
		return true
	}

	failed := false
	for _, handler := range b.registry.Matching(envelope.EventType) {
		done, err := b.ledger.WasHandled(ctx, envelope.ID, handler.ID())
		if err != nil {
			b.logger.Error().Err(err).
				Int64("envelope_id", envelope.ID).
				Str("handler", handler.ID()).
				Msg("Failed to check handled ledger")
			failed = true
			continue
		}
		if done {
			continue
		}

		if err := b.invoke(ctx, handler, event); err != nil {
			handlerFailures.WithLabelValues(handler.ID()).Inc()
			b.logger.Error().Err(err).
				Int64("envelope_id", envelope.ID).
				Str("handler", handler.ID()).
				Msg("Handler failed")
			failed = true
			continue
		}

		if err := b.ledger.MarkHandled(ctx, envelope.ID, handler.ID()); err != nil {
			// The handler ran but its completion was not recorded.
			// Keep the envelope failing so the next attempt re-checks
			// the ledger instead of losing the record.
			b.logger.Error().Err(err).
				Int64("envelope_id", envelope.ID).
				Str("handler", handler.ID()).
				Msg("Failed to record handled event")
			failed = true
		}
	}

	return failed
}

// invoke runs one handler, converting a panic into an error so a
// misbehaving handler cannot take down the pass.
func (b *Bus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", handler.ID(), r)
		}
	}()
	return handler.Handle(ctx, event)
}
