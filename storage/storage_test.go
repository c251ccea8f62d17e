package storage

import (
	"testing"
	"time"

	"tasksync/domain"
)

func TestNewRejectsBadConnectionString(t *testing.T) {
	if _, err := New("not-a-connection-string", "tasks"); err == nil {
		t.Fatal("expected error for malformed connection string")
	}
}

func TestTaskEntityRoundTrip(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orig := domain.Task{
		ID:          "t1",
		Title:       "ship release",
		Description: "cut and tag",
		Priority:    domain.PriorityHigh,
		Status:      domain.StatusInProgress,
		DueDate:     &due,
		AssignedTo:  []string{"u1", "u2"},
		Subtasks:    []domain.Subtask{{ID: "s1", Title: "tag", IsCompleted: true}},
		Version:     7,
		CreatedAt:   time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC),
	}

	payload, err := encodeTask(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeTask(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != orig.ID || got.Title != orig.Title || got.Status != orig.Status || got.Version != orig.Version {
		t.Fatalf("unexpected round trip: %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("due date lost: %+v", got.DueDate)
	}
	if len(got.AssignedTo) != 2 || got.AssignedTo[1] != "u2" {
		t.Fatalf("assignment lost: %v", got.AssignedTo)
	}
	if len(got.Subtasks) != 1 || !got.Subtasks[0].IsCompleted {
		t.Fatalf("subtasks lost: %v", got.Subtasks)
	}
}
