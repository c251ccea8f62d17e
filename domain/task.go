package domain

import "time"

// Status of a task. Derived from subtask completion whenever subtasks exist.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// ValidStatus reports whether s is one of the three task statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is one of the three priorities.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Subtask is a single checklist item within a task.
type Subtask struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// Task is an immutable snapshot of a single assignable work item. Version is
// bumped by the store on every mutation so consumers can reject stale merges.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssignedTo  []string   `json:"assignedTo"`
	Subtasks    []Subtask  `json:"subtasks,omitempty"`
	Version     int64      `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Clone returns a deep copy of the task so callers can hold snapshots without
// sharing the assignment and subtask slices.
func (t Task) Clone() Task {
	c := t
	if t.AssignedTo != nil {
		c.AssignedTo = append([]string(nil), t.AssignedTo...)
	}
	if t.Subtasks != nil {
		c.Subtasks = append([]Subtask(nil), t.Subtasks...)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return c
}

// DeriveStatus computes a task status from its subtask completion set.
// With no subtasks the current status is kept, whoever mutated the task set
// it directly.
func DeriveStatus(subtasks []Subtask, current Status) Status {
	if len(subtasks) == 0 {
		return current
	}
	completed := 0
	for _, st := range subtasks {
		if st.IsCompleted {
			completed++
		}
	}
	switch completed {
	case 0:
		return StatusPending
	case len(subtasks):
		return StatusCompleted
	default:
		return StatusInProgress
	}
}
