package client

import (
	"fmt"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"tasksync/domain"
)

func TestFeedCapsAtFifty(t *testing.T) {
	f := NewFeed()
	for i := 0; i < feedCapacity+10; i++ {
		f.Add(domain.TaskCreated, fmt.Sprintf("task %d", i), fmt.Sprintf("t%d", i), "")
	}

	got := f.Notifications()
	if len(got) != feedCapacity {
		t.Fatalf("expected feed capped at %d, got %d", feedCapacity, len(got))
	}
	if got[0].TaskID != fmt.Sprintf("t%d", feedCapacity+9) {
		t.Fatalf("expected newest first, head is %s", got[0].TaskID)
	}
	if f.Unread() != feedCapacity {
		t.Fatalf("unread must not exceed capacity, got %d", f.Unread())
	}
}

func TestFeedMarkReadAndRemove(t *testing.T) {
	f := NewFeed()
	f.Add(domain.TaskCreated, "one", "t1", "")
	f.Add(domain.TaskUpdated, "two", "t2", "")

	id := f.Notifications()[0].ID
	f.MarkRead(id)
	if f.Unread() != 1 {
		t.Fatalf("expected 1 unread after mark, got %d", f.Unread())
	}
	f.MarkRead(id)
	if f.Unread() != 1 {
		t.Fatalf("marking twice must not double-decrement, got %d", f.Unread())
	}

	f.Remove(f.Notifications()[1].ID)
	if f.Unread() != 0 {
		t.Fatalf("removing an unread entry decrements, got %d", f.Unread())
	}
	if len(f.Notifications()) != 1 {
		t.Fatalf("expected 1 notification left, got %d", len(f.Notifications()))
	}
}

func TestFeedMarkAllReadAndClear(t *testing.T) {
	f := NewFeed()
	f.Add(domain.TaskCreated, "one", "t1", "")
	f.Add(domain.TaskDeleted, "two", "t2", "")

	f.MarkAllRead()
	if f.Unread() != 0 {
		t.Fatalf("expected 0 unread, got %d", f.Unread())
	}
	for _, n := range f.Notifications() {
		if !n.IsRead {
			t.Fatalf("expected every entry read, got %+v", n)
		}
	}

	f.Clear()
	if len(f.Notifications()) != 0 || f.Unread() != 0 {
		t.Fatal("expected empty feed after clear")
	}
}

func TestAddFromEventMessages(t *testing.T) {
	task := domain.Task{ID: "t1", Title: "Ship release", Status: domain.StatusPending}
	taskData, err := sonic.Marshal(task)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	statusData, err := sonic.Marshal(domain.TaskStatusChangedData{TaskID: "t1", Status: domain.StatusInProgress})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	cases := []struct {
		ev        domain.Event
		want      string
		wantTitle string
	}{
		{domain.Event{Kind: domain.TaskCreated, TaskID: "t1", Data: taskData}, "New task assigned: Ship release", "Ship release"},
		{domain.Event{Kind: domain.TaskUpdated, TaskID: "t1", Data: taskData}, "Task updated: Ship release", "Ship release"},
		{domain.Event{Kind: domain.TaskDeleted, TaskID: "t1"}, "A task assigned to you was deleted", ""},
		{domain.Event{Kind: domain.SubtaskStatusChanged, TaskID: "t1"}, "A subtask status was updated", ""},
		{domain.Event{Kind: domain.TaskStatusChanged, TaskID: "t1", Data: statusData}, "Task status changed to in-progress", ""},
	}

	f := NewFeed()
	f.now = func() time.Time { return time.Unix(1700000000, 0) }
	for _, c := range cases {
		f.AddFromEvent(c.ev)
		if got := f.Notifications()[0].Message; got != c.want {
			t.Fatalf("kind %s: expected %q, got %q", c.ev.Kind, c.want, got)
		}
		if got := f.Notifications()[0].TaskTitle; got != c.wantTitle {
			t.Fatalf("kind %s: expected title %q, got %q", c.ev.Kind, c.wantTitle, got)
		}
	}
	if f.Unread() != len(cases) {
		t.Fatalf("expected %d unread, got %d", len(cases), f.Unread())
	}
}
