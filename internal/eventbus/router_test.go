package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// unscopedEvent has no task attached.
type unscopedEvent struct{}

func (unscopedEvent) EventID() string                 { return "u1" }
func (unscopedEvent) EventType() string               { return "summary.test" }
func (unscopedEvent) OccurredAt() time.Time           { return time.Time{} }
func (unscopedEvent) MarshalPayload() ([]byte, error) { return []byte(`{}`), nil }

func TestAggregateOfTaskScopedEvent(t *testing.T) {
	id, typ := AggregateOf(&testEvent{ID: "e1", Task: "t42"})
	assert.Equal(t, "t42", id)
	assert.Equal(t, AggregateTypeTask, typ)
}

func TestAggregateOfUnscopedEvent(t *testing.T) {
	id, typ := AggregateOf(unscopedEvent{})
	assert.Equal(t, AggregateTypeUnknown, id)
	assert.Equal(t, AggregateTypeUnknown, typ)
}

func TestAggregateOfEmptyTaskID(t *testing.T) {
	// A task event without its task id routes to the unknown bucket
	// rather than creating an aggregate with an empty key.
	id, typ := AggregateOf(&testEvent{ID: "e1"})
	assert.Equal(t, AggregateTypeUnknown, id)
	assert.Equal(t, AggregateTypeUnknown, typ)
}
