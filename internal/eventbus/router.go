package eventbus

// TaskScoped is implemented by events that belong to a single task.
// The bus uses it to group deliveries and keep them ordered within the
// task.
type TaskScoped interface {
	TaskID() string
}

const (
	AggregateTypeTask    = "task"
	AggregateTypeUnknown = "unknown"
)

// AggregateOf determines which aggregate an event belongs to. Events
// without a recognizable aggregate route to ("unknown", "unknown");
// routing never fails, so it can never block publication.
func AggregateOf(event Event) (aggregateID, aggregateType string) {
	if scoped, ok := event.(TaskScoped); ok {
		if id := scoped.TaskID(); id != "" {
			return id, AggregateTypeTask
		}
	}
	return AggregateTypeUnknown, AggregateTypeUnknown
}
