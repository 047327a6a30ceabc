package syncqueue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-egor-smirnov/lift/internal/events"
)

type fakeQueue struct {
	mu      sync.Mutex
	entries [][2]string
	fails   bool
}

func (q *fakeQueue) QueueAggregate(ctx context.Context, aggregateID, aggregateType string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.fails {
		return errors.New("queue unavailable")
	}
	q.entries = append(q.entries, [2]string{aggregateID, aggregateType})
	return nil
}

func (q *fakeQueue) queued() [][2]string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][2]string(nil), q.entries...)
}

func newTestTracker(queue Queue) *Tracker {
	logger := zerolog.New(io.Discard)
	return NewTracker(queue, &logger)
}

func TestTrackerQueuesTaskAggregate(t *testing.T) {
	queue := &fakeQueue{}
	tracker := newTestTracker(queue)

	err := tracker.Handle(context.Background(), events.NewTaskCompleted("t1"))
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"t1", "task"}}, queue.queued())
}

func TestTrackerSkipsUnscopedEvents(t *testing.T) {
	queue := &fakeQueue{}
	tracker := newTestTracker(queue)

	err := tracker.Handle(context.Background(), events.NewSummaryGenerated("2026-08-21", "claude-3-5-haiku"))
	require.NoError(t, err)
	assert.Empty(t, queue.queued())
}

func TestTrackerPropagatesQueueFailure(t *testing.T) {
	queue := &fakeQueue{fails: true}
	tracker := newTestTracker(queue)

	err := tracker.Handle(context.Background(), events.NewTaskCompleted("t1"))
	require.Error(t, err)
}

func TestTrackerID(t *testing.T) {
	tracker := newTestTracker(&fakeQueue{})
	assert.Equal(t, HandlerID, tracker.ID())
}
