package consts

const (
	// SSEDataPrefix starts every event frame written to a push connection.
	SSEDataPrefix = "data: "
	// TasksKeyPrefix namespaces cached per-user task lists in redis.
	TasksKeyPrefix = "tasks:"
	// DefaultEventsChannel is the redis pub/sub channel for task events.
	DefaultEventsChannel = "task-events"
)
