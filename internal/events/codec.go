package events

import (
	"encoding/json"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

// NewCodec returns a codec with every lift event type registered.
func NewCodec() *eventbus.Codec {
	c := eventbus.NewCodec()
	c.Register(TypeTaskCreated, decodeTaskCreated)
	c.Register(TypeTaskCompleted, decodeTaskCompleted)
	c.Register(TypeTaskMovedToToday, decodeTaskMovedToToday)
	c.Register(TypeTaskDeleted, decodeTaskDeleted)
	c.Register(TypeSummaryGenerated, decodeSummaryGenerated)
	return c
}

func decodeTaskCreated(data []byte) (eventbus.Event, error) {
	var e TaskCreated
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func decodeTaskCompleted(data []byte) (eventbus.Event, error) {
	var e TaskCompleted
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func decodeTaskMovedToToday(data []byte) (eventbus.Event, error) {
	var e TaskMovedToToday
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func decodeTaskDeleted(data []byte) (eventbus.Event, error) {
	var e TaskDeleted
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func decodeSummaryGenerated(data []byte) (eventbus.Event, error) {
	var e SummaryGenerated
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
