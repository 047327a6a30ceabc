package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

func TestAppendEnvelopesStampsIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []*eventbus.Envelope{
		testEnvelope("t1", "task.created"),
		testEnvelope("t1", "task.completed"),
		testEnvelope("t2", "task.created"),
	}
	before := time.Now().Add(-time.Second)
	require.NoError(t, db.AppendEnvelopes(ctx, batch))

	for i, envelope := range batch {
		assert.Positive(t, envelope.ID)
		assert.Equal(t, int64(i+1), envelope.CreatedSeq)
		assert.Equal(t, eventbus.StatusPending, envelope.Status)
		assert.Equal(t, 0, envelope.AttemptCount)
		assert.Nil(t, envelope.NextAttemptAt)
		assert.True(t, envelope.CreatedAt.After(before))
		assert.Equal(t, envelope.CreatedAt, envelope.UpdatedAt)
	}
	assert.Greater(t, batch[1].ID, batch[0].ID)

	// The stamped envelope matches what a later read returns, down to
	// the millisecond timestamps.
	got, err := db.GetEnvelope(ctx, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, batch[0], got)
}

func TestAppendEnvelopesContinuesSequence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := []*eventbus.Envelope{testEnvelope("t1", "task.created"), testEnvelope("t1", "task.completed")}
	require.NoError(t, db.AppendEnvelopes(ctx, first))

	second := []*eventbus.Envelope{testEnvelope("t2", "task.created"), testEnvelope("t2", "task.deleted")}
	require.NoError(t, db.AppendEnvelopes(ctx, second))

	assert.Equal(t, int64(3), second[0].CreatedSeq)
	assert.Equal(t, int64(4), second[1].CreatedSeq)
}

func TestDueEnvelopesOrdersByAggregateThenSeq(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Interleave two aggregates so publish order and aggregate order
	// disagree.
	batch := []*eventbus.Envelope{
		testEnvelope("b", "task.created"),
		testEnvelope("a", "task.created"),
		testEnvelope("b", "task.completed"),
		testEnvelope("a", "task.completed"),
	}
	require.NoError(t, db.AppendEnvelopes(ctx, batch))

	due, err := db.DueEnvelopes(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 4)

	var order []int64
	for _, envelope := range due {
		order = append(order, envelope.CreatedSeq)
	}
	// a: seq 2, 4 then b: seq 1, 3.
	assert.Equal(t, []int64{2, 4, 1, 3}, order)
	assert.Equal(t, "a", due[0].AggregateID)
	assert.Equal(t, "b", due[2].AggregateID)
}

func TestDueEnvelopesSkipsFutureRetries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	envelope := testEnvelope("t1", "task.created")
	require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{envelope}))

	now := time.Now()
	require.NoError(t, db.MarkProcessing(ctx, envelope.ID))
	require.NoError(t, db.RescheduleEnvelope(ctx, envelope.ID, now.Add(time.Hour)))

	due, err := db.DueEnvelopes(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = db.DueEnvelopes(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, envelope.ID, due[0].ID)
}

func TestDueEnvelopesSkipsNonPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []*eventbus.Envelope{
		testEnvelope("t1", "task.created"),
		testEnvelope("t2", "task.created"),
		testEnvelope("t3", "task.created"),
	}
	require.NoError(t, db.AppendEnvelopes(ctx, batch))

	require.NoError(t, db.MarkProcessing(ctx, batch[0].ID))

	require.NoError(t, db.MarkProcessing(ctx, batch[1].ID))
	require.NoError(t, db.CompleteEnvelope(ctx, batch[1].ID))

	require.NoError(t, db.MarkProcessing(ctx, batch[2].ID))
	require.NoError(t, db.DeadLetterEnvelope(ctx, batch[2].ID))

	due, err := db.DueEnvelopes(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestEnvelopeLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("Complete", func(t *testing.T) {
		envelope := testEnvelope("t1", "task.created")
		require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{envelope}))

		require.NoError(t, db.MarkProcessing(ctx, envelope.ID))
		got, err := db.GetEnvelope(ctx, envelope.ID)
		require.NoError(t, err)
		assert.Equal(t, eventbus.StatusProcessing, got.Status)
		assert.Equal(t, 0, got.AttemptCount, "claiming must not count an attempt")

		require.NoError(t, db.CompleteEnvelope(ctx, envelope.ID))
		got, err = db.GetEnvelope(ctx, envelope.ID)
		require.NoError(t, err)
		assert.Equal(t, eventbus.StatusDone, got.Status)
		assert.Equal(t, 1, got.AttemptCount)
	})

	t.Run("RetryThenComplete", func(t *testing.T) {
		envelope := testEnvelope("t2", "task.completed")
		require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{envelope}))

		next := time.Now().Add(5 * time.Minute)
		require.NoError(t, db.MarkProcessing(ctx, envelope.ID))
		require.NoError(t, db.RescheduleEnvelope(ctx, envelope.ID, next))

		got, err := db.GetEnvelope(ctx, envelope.ID)
		require.NoError(t, err)
		assert.Equal(t, eventbus.StatusPending, got.Status)
		assert.Equal(t, 1, got.AttemptCount)
		require.NotNil(t, got.NextAttemptAt)
		assert.Equal(t, next.UnixMilli(), got.NextAttemptAt.UnixMilli())

		require.NoError(t, db.MarkProcessing(ctx, envelope.ID))
		require.NoError(t, db.CompleteEnvelope(ctx, envelope.ID))

		got, err = db.GetEnvelope(ctx, envelope.ID)
		require.NoError(t, err)
		assert.Equal(t, eventbus.StatusDone, got.Status)
		assert.Equal(t, 2, got.AttemptCount)
	})

	t.Run("DeadLetter", func(t *testing.T) {
		envelope := testEnvelope("t3", "task.deleted")
		require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{envelope}))

		require.NoError(t, db.MarkProcessing(ctx, envelope.ID))
		require.NoError(t, db.DeadLetterEnvelope(ctx, envelope.ID))

		got, err := db.GetEnvelope(ctx, envelope.ID)
		require.NoError(t, err)
		assert.Equal(t, eventbus.StatusDead, got.Status)
		assert.Equal(t, 1, got.AttemptCount)

		dead, err := db.DeadEnvelopes(ctx)
		require.NoError(t, err)
		require.Len(t, dead, 1)
		assert.Equal(t, envelope.ID, dead[0].ID)
	})
}

func TestTransitionGuards(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	pending := testEnvelope("t1", "task.created")
	done := testEnvelope("t2", "task.created")
	require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{pending, done}))

	require.NoError(t, db.MarkProcessing(ctx, done.ID))
	require.NoError(t, db.CompleteEnvelope(ctx, done.ID))

	t.Run("CompleteRequiresProcessing", func(t *testing.T) {
		err := db.CompleteEnvelope(ctx, pending.ID)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("RescheduleRequiresProcessing", func(t *testing.T) {
		err := db.RescheduleEnvelope(ctx, pending.ID, time.Now())
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("DeadLetterRequiresProcessing", func(t *testing.T) {
		err := db.DeadLetterEnvelope(ctx, pending.ID)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("DoneIsImmutable", func(t *testing.T) {
		err := db.MarkProcessing(ctx, done.ID)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("DoubleClaim", func(t *testing.T) {
		require.NoError(t, db.MarkProcessing(ctx, pending.ID))
		err := db.MarkProcessing(ctx, pending.ID)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("UnknownID", func(t *testing.T) {
		err := db.MarkProcessing(ctx, 9999)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})
}

func TestReclaimStuck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	envelope := testEnvelope("t1", "task.created")
	require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{envelope}))

	// One failed attempt, then stuck in processing again.
	require.NoError(t, db.MarkProcessing(ctx, envelope.ID))
	require.NoError(t, db.RescheduleEnvelope(ctx, envelope.ID, time.Now()))
	require.NoError(t, db.MarkProcessing(ctx, envelope.ID))

	reclaimed, err := db.ReclaimStuck(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, reclaimed, "fresh rows are not stuck yet")

	reclaimed, err = db.ReclaimStuck(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	got, err := db.GetEnvelope(ctx, envelope.ID)
	require.NoError(t, err)
	assert.Equal(t, eventbus.StatusPending, got.Status)
	assert.Equal(t, 1, got.AttemptCount, "reclaiming must not count an attempt")
}

func TestCountByStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []*eventbus.Envelope{
		testEnvelope("t1", "task.created"),
		testEnvelope("t2", "task.created"),
		testEnvelope("t3", "task.created"),
		testEnvelope("t4", "task.created"),
	}
	require.NoError(t, db.AppendEnvelopes(ctx, batch))

	require.NoError(t, db.MarkProcessing(ctx, batch[1].ID))

	require.NoError(t, db.MarkProcessing(ctx, batch[2].ID))
	require.NoError(t, db.CompleteEnvelope(ctx, batch[2].ID))

	require.NoError(t, db.MarkProcessing(ctx, batch[3].ID))
	require.NoError(t, db.DeadLetterEnvelope(ctx, batch[3].ID))

	counts, err := db.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[eventbus.Status]int64{
		eventbus.StatusPending:    1,
		eventbus.StatusProcessing: 1,
		eventbus.StatusDone:       1,
		eventbus.StatusDead:       1,
	}, counts)
}

func TestDeadEnvelopesOrderedBySeq(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []*eventbus.Envelope{
		testEnvelope("t1", "task.created"),
		testEnvelope("t2", "task.created"),
	}
	require.NoError(t, db.AppendEnvelopes(ctx, batch))

	// Dead-letter in reverse publish order.
	require.NoError(t, db.MarkProcessing(ctx, batch[1].ID))
	require.NoError(t, db.DeadLetterEnvelope(ctx, batch[1].ID))
	require.NoError(t, db.MarkProcessing(ctx, batch[0].ID))
	require.NoError(t, db.DeadLetterEnvelope(ctx, batch[0].ID))

	dead, err := db.DeadEnvelopes(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 2)
	assert.Equal(t, int64(1), dead[0].CreatedSeq)
	assert.Equal(t, int64(2), dead[1].CreatedSeq)
}

func TestGetEnvelopeMissing(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetEnvelope(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
