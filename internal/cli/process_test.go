package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-egor-smirnov/lift/internal/database"
	"github.com/k-egor-smirnov/lift/internal/eventbus"
	"github.com/k-egor-smirnov/lift/internal/events"
)

func TestProcessRunsOnePass(t *testing.T) {
	configPath, dbPath := writeTestConfig(t)
	ctx := context.Background()

	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(dbPath, &logger)
	require.NoError(t, err)

	event := events.NewTaskCompleted("t1")
	payload, err := event.MarshalPayload()
	require.NoError(t, err)
	require.NoError(t, db.AppendEnvelopes(ctx, []*eventbus.Envelope{{
		AggregateID:   "t1",
		AggregateType: "task",
		EventType:     events.TypeTaskCompleted,
		EventData:     payload,
	}}))
	require.NoError(t, db.Close())

	buf := &bytes.Buffer{}
	cmd := NewProcessCommand(&RootOptions{ConfigPath: configPath})
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Processing pass completed.")

	// The pass delivered the event to the sync tracker and finished
	// the envelope.
	db, err = database.NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	counts, err := db.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[eventbus.StatusDone])

	pending, err := db.PendingSync(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "t1", pending[0].AggregateID)
}

func TestProcessEmptyDatabase(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	buf := &bytes.Buffer{}
	cmd := NewProcessCommand(&RootOptions{ConfigPath: configPath})
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Processing pass completed.")
}
