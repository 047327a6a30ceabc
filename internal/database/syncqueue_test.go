package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueAggregate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.QueueAggregate(ctx, "t1", "task"))
	require.NoError(t, db.QueueAggregate(ctx, "t2", "task"))

	pending, err := db.PendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "t1", pending[0].AggregateID)
	assert.Equal(t, "t2", pending[1].AggregateID)
	assert.Equal(t, "task", pending[0].AggregateType)
	assert.False(t, pending[0].QueuedAt.IsZero())
}

func TestQueueAggregateCollapsesDuplicates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Several events for the same aggregate queue one sync entry.
	require.NoError(t, db.QueueAggregate(ctx, "t1", "task"))
	require.NoError(t, db.QueueAggregate(ctx, "t1", "task"))
	require.NoError(t, db.QueueAggregate(ctx, "t1", "task"))

	pending, err := db.PendingSync(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestClearSynced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.QueueAggregate(ctx, "t1", "task"))
	require.NoError(t, db.QueueAggregate(ctx, "t2", "task"))

	require.NoError(t, db.ClearSynced(ctx, "t1", "task"))

	pending, err := db.PendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "t2", pending[0].AggregateID)

	// Clearing an absent entry is harmless.
	require.NoError(t, db.ClearSynced(ctx, "t1", "task"))
}
