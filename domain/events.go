package domain

import "encoding/json"

const (
	TaskCreated          = "task-created"
	TaskUpdated          = "task-updated"
	TaskDeleted          = "task-deleted"
	SubtaskStatusChanged = "subtask-status-changed"
	TaskStatusChanged    = "task-status-changed"
)

// Event is a typed, immutable notification of a task mutation. Created and
// updated events carry the full task snapshot in Data; the remaining kinds
// carry only their identifying payloads.
type Event struct {
	Kind   string          `json:"kind"`
	TaskID string          `json:"taskId"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type TaskDeletedData struct {
	TaskID string `json:"taskId"`
}

type SubtaskStatusChangedData struct {
	TaskID      string `json:"taskId"`
	SubtaskID   string `json:"subtaskId"`
	IsCompleted bool   `json:"isCompleted"`
}

type TaskStatusChangedData struct {
	TaskID string `json:"taskId"`
	Status Status `json:"status"`
}
