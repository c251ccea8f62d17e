package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tasksync/domain"
)

type fakeBackend struct {
	tasks     map[string]domain.Task
	listCalls int
}

func newFakeBackend(tasks ...domain.Task) *fakeBackend {
	f := &fakeBackend{tasks: map[string]domain.Task{}}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func (f *fakeBackend) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeBackend) InsertTask(ctx context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeBackend) DeleteTask(ctx context.Context, id string) error {
	delete(f.tasks, id)
	return nil
}

func (f *fakeBackend) ListTasks(ctx context.Context) ([]domain.Task, error) {
	out := []domain.Task{}
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeBackend) ListUserTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	f.listCalls++
	out := []domain.Task{}
	for _, t := range f.tasks {
		for _, u := range t.AssignedTo {
			if u == userID {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func setupCache(t *testing.T, base backend) (*Cache, *redis.Client, func()) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewCache(base, rc, time.Hour), rc, func() {
		rc.Close()
		m.Close()
	}
}

func TestListUserTasksReadThrough(t *testing.T) {
	base := newFakeBackend(domain.Task{ID: "t1", AssignedTo: []string{"u1"}})
	c, _, cleanup := setupCache(t, base)
	defer cleanup()
	ctx := context.Background()

	first, err := c.ListUserTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 task, got %d", len(first))
	}
	if _, err := c.ListUserTasks(ctx, "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if base.listCalls != 1 {
		t.Fatalf("expected one backend call, got %d", base.listCalls)
	}
}

func TestMutationsEvictAffectedUsers(t *testing.T) {
	base := newFakeBackend(domain.Task{ID: "t1", AssignedTo: []string{"u1"}})
	c, rc, cleanup := setupCache(t, base)
	defer cleanup()
	ctx := context.Background()

	if _, err := c.ListUserTasks(ctx, "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if rc.Exists(ctx, userTasksKey("u1")).Val() != 1 {
		t.Fatal("expected cached list for u1")
	}

	// Reassigning t1 to u2 must evict both the old and new assignee.
	if _, err := c.ListUserTasks(ctx, "u2"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := c.UpdateTask(ctx, domain.Task{ID: "t1", AssignedTo: []string{"u2"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if rc.Exists(ctx, userTasksKey("u1")).Val() != 0 {
		t.Fatal("expected u1 cache evicted on reassignment")
	}
	if rc.Exists(ctx, userTasksKey("u2")).Val() != 0 {
		t.Fatal("expected u2 cache evicted on reassignment")
	}

	tasks, err := c.ListUserTasks(ctx, "u2")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("expected reassigned task for u2, got %+v", tasks)
	}
}

func TestDeleteEvictsPreDeleteAssignees(t *testing.T) {
	base := newFakeBackend(domain.Task{ID: "t1", AssignedTo: []string{"u1"}})
	c, rc, cleanup := setupCache(t, base)
	defer cleanup()
	ctx := context.Background()

	if _, err := c.ListUserTasks(ctx, "u1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := c.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rc.Exists(ctx, userTasksKey("u1")).Val() != 0 {
		t.Fatal("expected u1 cache evicted on delete")
	}
}

func TestCorruptCacheEntryFallsBack(t *testing.T) {
	base := newFakeBackend(domain.Task{ID: "t1", AssignedTo: []string{"u1"}})
	c, rc, cleanup := setupCache(t, base)
	defer cleanup()
	ctx := context.Background()

	if err := rc.Set(ctx, userTasksKey("u1"), "not json", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	tasks, err := c.ListUserTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected fallback to backend, got %d tasks", len(tasks))
	}
}
