package client

import (
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"tasksync/domain"
)

const feedCapacity = 50

type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	TaskID    string    `json:"taskId"`
	TaskTitle string    `json:"taskTitle,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"isRead"`
}

// Feed is a bounded newest-first notification list with an unread counter.
// It keeps at most feedCapacity entries; older ones fall off the end.
type Feed struct {
	notifications []Notification
	unread        int
	now           func() time.Time
}

func NewFeed() *Feed {
	return &Feed{now: time.Now}
}

func (f *Feed) Notifications() []Notification { return f.notifications }

func (f *Feed) Unread() int { return f.unread }

// AddFromEvent converts a pushed event into a human-readable notification.
// Full-task payloads carry the title; the remaining kinds leave it empty.
func (f *Feed) AddFromEvent(ev domain.Event) {
	switch ev.Kind {
	case domain.TaskCreated:
		title := eventTaskTitle(ev)
		f.Add(ev.Kind, "New task assigned: "+displayTitle(title), ev.TaskID, title)
	case domain.TaskUpdated:
		title := eventTaskTitle(ev)
		f.Add(ev.Kind, "Task updated: "+displayTitle(title), ev.TaskID, title)
	case domain.TaskDeleted:
		f.Add(ev.Kind, "A task assigned to you was deleted", ev.TaskID, "")
	case domain.SubtaskStatusChanged:
		f.Add(ev.Kind, "A subtask status was updated", ev.TaskID, "")
	case domain.TaskStatusChanged:
		var data domain.TaskStatusChangedData
		if err := sonic.Unmarshal(ev.Data, &data); err == nil && data.Status != "" {
			f.Add(ev.Kind, "Task status changed to "+string(data.Status), ev.TaskID, "")
			return
		}
		f.Add(ev.Kind, "Task status changed", ev.TaskID, "")
	}
}

func (f *Feed) Add(kind, message, taskID, taskTitle string) {
	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		TaskID:    taskID,
		TaskTitle: taskTitle,
		Timestamp: f.now(),
	}
	f.notifications = append([]Notification{n}, f.notifications...)
	if len(f.notifications) > feedCapacity {
		dropped := f.notifications[feedCapacity:]
		for _, d := range dropped {
			if !d.IsRead && f.unread > 0 {
				f.unread--
			}
		}
		f.notifications = f.notifications[:feedCapacity]
	}
	f.unread++
}

func (f *Feed) MarkRead(id string) {
	for i := range f.notifications {
		if f.notifications[i].ID == id && !f.notifications[i].IsRead {
			f.notifications[i].IsRead = true
			if f.unread > 0 {
				f.unread--
			}
			return
		}
	}
}

func (f *Feed) MarkAllRead() {
	for i := range f.notifications {
		f.notifications[i].IsRead = true
	}
	f.unread = 0
}

func (f *Feed) Remove(id string) {
	for i := range f.notifications {
		if f.notifications[i].ID != id {
			continue
		}
		if !f.notifications[i].IsRead && f.unread > 0 {
			f.unread--
		}
		f.notifications = append(f.notifications[:i:i], f.notifications[i+1:]...)
		return
	}
}

func (f *Feed) Clear() {
	f.notifications = nil
	f.unread = 0
}

func eventTaskTitle(ev domain.Event) string {
	var task domain.Task
	if err := sonic.Unmarshal(ev.Data, &task); err != nil {
		return ""
	}
	return task.Title
}

func displayTitle(title string) string {
	if title == "" {
		return "(untitled)"
	}
	return title
}
