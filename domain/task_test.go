package domain

import "testing"

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		subtasks []Subtask
		current  Status
		want     Status
	}{
		{"no subtasks keeps current", nil, StatusInProgress, StatusInProgress},
		{"empty slice keeps current", []Subtask{}, StatusCompleted, StatusCompleted},
		{"none completed", []Subtask{{IsCompleted: false}}, StatusCompleted, StatusPending},
		{"some completed", []Subtask{{IsCompleted: true}, {IsCompleted: false}}, StatusPending, StatusInProgress},
		{"all completed", []Subtask{{IsCompleted: true}, {IsCompleted: true}}, StatusPending, StatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(tc.subtasks, tc.current); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusCompleted} {
		if !ValidStatus(s) {
			t.Fatalf("expected %s to be valid", s)
		}
	}
	if ValidStatus("done") {
		t.Fatal("expected done to be invalid")
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	orig := Task{
		ID:         "t1",
		AssignedTo: []string{"u1"},
		Subtasks:   []Subtask{{ID: "s1", Title: "a"}},
	}
	c := orig.Clone()
	c.AssignedTo[0] = "u2"
	c.Subtasks[0].IsCompleted = true
	if orig.AssignedTo[0] != "u1" {
		t.Fatal("clone shares assignedTo slice")
	}
	if orig.Subtasks[0].IsCompleted {
		t.Fatal("clone shares subtasks slice")
	}
}
