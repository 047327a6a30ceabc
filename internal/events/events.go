package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
)

// Event type discriminators, as stored in envelopes.
const (
	TypeTaskCreated      = "task.created"
	TypeTaskCompleted    = "task.completed"
	TypeTaskMovedToToday = "task.moved_to_today"
	TypeTaskDeleted      = "task.deleted"
	TypeSummaryGenerated = "summary.generated"
)

var (
	_ eventbus.Event      = (*TaskCreated)(nil)
	_ eventbus.TaskScoped = (*TaskCreated)(nil)
	_ eventbus.Event      = (*TaskCompleted)(nil)
	_ eventbus.TaskScoped = (*TaskCompleted)(nil)
	_ eventbus.Event      = (*TaskMovedToToday)(nil)
	_ eventbus.TaskScoped = (*TaskMovedToToday)(nil)
	_ eventbus.Event      = (*TaskDeleted)(nil)
	_ eventbus.TaskScoped = (*TaskDeleted)(nil)
	_ eventbus.Event      = (*SummaryGenerated)(nil)
)

// TaskCreated is emitted when a new task lands in a category.
type TaskCreated struct {
	ID         string    `json:"event_id"`
	At         time.Time `json:"occurred_at"`
	Task       string    `json:"task_id"`
	Title      string    `json:"title"`
	CategoryID string    `json:"category_id"`
}

func NewTaskCreated(taskID, title, categoryID string) *TaskCreated {
	return &TaskCreated{
		ID:         uuid.NewString(),
		At:         time.Now().UTC(),
		Task:       taskID,
		Title:      title,
		CategoryID: categoryID,
	}
}

func (e *TaskCreated) EventID() string                 { return e.ID }
func (e *TaskCreated) EventType() string               { return TypeTaskCreated }
func (e *TaskCreated) OccurredAt() time.Time           { return e.At }
func (e *TaskCreated) TaskID() string                  { return e.Task }
func (e *TaskCreated) MarshalPayload() ([]byte, error) { return json.Marshal(e) }

// TaskCompleted is emitted when a task is checked off.
type TaskCompleted struct {
	ID   string    `json:"event_id"`
	At   time.Time `json:"occurred_at"`
	Task string    `json:"task_id"`
}

func NewTaskCompleted(taskID string) *TaskCompleted {
	return &TaskCompleted{
		ID:   uuid.NewString(),
		At:   time.Now().UTC(),
		Task: taskID,
	}
}

func (e *TaskCompleted) EventID() string                 { return e.ID }
func (e *TaskCompleted) EventType() string               { return TypeTaskCompleted }
func (e *TaskCompleted) OccurredAt() time.Time           { return e.At }
func (e *TaskCompleted) TaskID() string                  { return e.Task }
func (e *TaskCompleted) MarshalPayload() ([]byte, error) { return json.Marshal(e) }

// TaskMovedToToday is emitted when a task is pulled into the daily
// selection.
type TaskMovedToToday struct {
	ID   string    `json:"event_id"`
	At   time.Time `json:"occurred_at"`
	Task string    `json:"task_id"`
	Date string    `json:"date"` // YYYY-MM-DD of the selection day
}

func NewTaskMovedToToday(taskID, date string) *TaskMovedToToday {
	return &TaskMovedToToday{
		ID:   uuid.NewString(),
		At:   time.Now().UTC(),
		Task: taskID,
		Date: date,
	}
}

func (e *TaskMovedToToday) EventID() string                 { return e.ID }
func (e *TaskMovedToToday) EventType() string               { return TypeTaskMovedToToday }
func (e *TaskMovedToToday) OccurredAt() time.Time           { return e.At }
func (e *TaskMovedToToday) TaskID() string                  { return e.Task }
func (e *TaskMovedToToday) MarshalPayload() ([]byte, error) { return json.Marshal(e) }

// TaskDeleted is emitted when a task is removed.
type TaskDeleted struct {
	ID   string    `json:"event_id"`
	At   time.Time `json:"occurred_at"`
	Task string    `json:"task_id"`
}

func NewTaskDeleted(taskID string) *TaskDeleted {
	return &TaskDeleted{
		ID:   uuid.NewString(),
		At:   time.Now().UTC(),
		Task: taskID,
	}
}

func (e *TaskDeleted) EventID() string                 { return e.ID }
func (e *TaskDeleted) EventType() string               { return TypeTaskDeleted }
func (e *TaskDeleted) OccurredAt() time.Time           { return e.At }
func (e *TaskDeleted) TaskID() string                  { return e.Task }
func (e *TaskDeleted) MarshalPayload() ([]byte, error) { return json.Marshal(e) }

// SummaryGenerated is emitted when the AI daily summary is ready. It
// carries no task id, so it routes to the unknown aggregate.
type SummaryGenerated struct {
	ID    string    `json:"event_id"`
	At    time.Time `json:"occurred_at"`
	Date  string    `json:"date"` // YYYY-MM-DD the summary covers
	Model string    `json:"model"`
}

func NewSummaryGenerated(date, model string) *SummaryGenerated {
	return &SummaryGenerated{
		ID:    uuid.NewString(),
		At:    time.Now().UTC(),
		Date:  date,
		Model: model,
	}
}

func (e *SummaryGenerated) EventID() string                 { return e.ID }
func (e *SummaryGenerated) EventType() string               { return TypeSummaryGenerated }
func (e *SummaryGenerated) OccurredAt() time.Time           { return e.At }
func (e *SummaryGenerated) MarshalPayload() ([]byte, error) { return json.Marshal(e) }
