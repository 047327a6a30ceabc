package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEventType is returned when a stored envelope carries an
// event type no decoder was registered for.
var ErrUnknownEventType = errors.New("unknown event type")

// Event is a domain event that can be published on the bus. The
// payload produced by MarshalPayload must carry everything needed to
// reconstruct the event, including its id and occurrence time, so the
// codec can round-trip it exactly.
type Event interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	MarshalPayload() ([]byte, error)
}

// Handler processes events delivered by the bus. ID must be stable
// across restarts: it keys the handled-events ledger, and changing it
// makes already-delivered events look undelivered.
type Handler interface {
	ID() string
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc struct {
	HandlerID string
	Fn        func(ctx context.Context, event Event) error
}

func (h HandlerFunc) ID() string { return h.HandlerID }

func (h HandlerFunc) Handle(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}

// DecodeFunc reconstructs a typed event from its stored payload.
type DecodeFunc func(data []byte) (Event, error)

// Codec maps event types to their reconstruction routines. It is built
// once at startup and read-only afterwards, so no locking is needed.
type Codec struct {
	decoders map[string]DecodeFunc
}

// NewCodec returns an empty codec.
func NewCodec() *Codec {
	return &Codec{decoders: make(map[string]DecodeFunc)}
}

// Register binds an event type to its decoder. The last registration
// for a type wins.
func (c *Codec) Register(eventType string, decode DecodeFunc) {
	c.decoders[eventType] = decode
}

// Decode reconstructs the event stored in data using the decoder
// registered for eventType.
func (c *Codec) Decode(eventType string, data []byte) (Event, error) {
	decode, ok := c.decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return decode(data)
}
