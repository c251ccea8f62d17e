package client

import (
	"github.com/bytedance/sonic"

	"tasksync/domain"
)

// Reconciler merges pushed events into locally held task collections so the
// observable state matches what a full re-fetch would produce. Collections
// are partial views (pagination, scoping), so events referencing unknown
// tasks are silent no-ops. Merges are idempotent; full-task merges carry a
// version guard so a stale snapshot can never clobber newer state.
type Reconciler struct {
	myTasks  []domain.Task
	allTasks []domain.Task
	hasAll   bool
	total    int
	detail   *domain.Task
}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// SeedMyTasks replaces the "my tasks" collection from a snapshot fetch.
func (r *Reconciler) SeedMyTasks(tasks []domain.Task) {
	r.myTasks = append([]domain.Task(nil), tasks...)
}

// SeedAllTasks replaces the admin-scoped collection and its cached total.
func (r *Reconciler) SeedAllTasks(tasks []domain.Task, total int) {
	r.allTasks = append([]domain.Task(nil), tasks...)
	r.hasAll = true
	if total < 0 {
		total = 0
	}
	r.total = total
}

// OpenDetail holds a single-task detail view.
func (r *Reconciler) OpenDetail(t domain.Task) {
	c := t.Clone()
	r.detail = &c
}

func (r *Reconciler) CloseDetail() { r.detail = nil }

func (r *Reconciler) MyTasks() []domain.Task { return r.myTasks }

func (r *Reconciler) AllTasks() ([]domain.Task, int) { return r.allTasks, r.total }

func (r *Reconciler) Detail() *domain.Task { return r.detail }

// PredictStatus computes the optimistic status a subtask toggle would
// produce, using the same derivation the server applies. The server's
// task-status-changed event always wins over this prediction.
func PredictStatus(t domain.Task, subtaskID string, isCompleted bool) domain.Status {
	subtasks := append([]domain.Subtask(nil), t.Subtasks...)
	for i := range subtasks {
		if subtasks[i].ID == subtaskID {
			subtasks[i].IsCompleted = isCompleted
		}
	}
	return domain.DeriveStatus(subtasks, t.Status)
}

// Apply merges one pushed event into every collection that is present.
// It is safe to apply duplicates and, except for full-task updates guarded
// by version, events in any order.
func (r *Reconciler) Apply(ev domain.Event) error {
	switch ev.Kind {
	case domain.TaskCreated:
		var task domain.Task
		if err := sonic.Unmarshal(ev.Data, &task); err != nil {
			return err
		}
		r.applyCreated(task)
	case domain.TaskUpdated:
		var task domain.Task
		if err := sonic.Unmarshal(ev.Data, &task); err != nil {
			return err
		}
		r.applyUpdated(task)
	case domain.TaskDeleted:
		var data domain.TaskDeletedData
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return err
		}
		if data.TaskID == "" {
			data.TaskID = ev.TaskID
		}
		r.applyDeleted(data.TaskID)
	case domain.SubtaskStatusChanged:
		var data domain.SubtaskStatusChangedData
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return err
		}
		r.applySubtaskStatus(data)
	case domain.TaskStatusChanged:
		var data domain.TaskStatusChangedData
		if err := sonic.Unmarshal(ev.Data, &data); err != nil {
			return err
		}
		r.applyTaskStatus(data)
	}
	return nil
}

func (r *Reconciler) applyCreated(task domain.Task) {
	for i := range r.myTasks {
		if r.myTasks[i].ID == task.ID {
			// Duplicate delivery or a race with the snapshot fetch.
			return
		}
	}
	r.myTasks = append([]domain.Task{task}, r.myTasks...)
}

func (r *Reconciler) applyUpdated(task domain.Task) {
	replace := func(list []domain.Task) {
		for i := range list {
			if list[i].ID != task.ID {
				continue
			}
			if task.Version < list[i].Version {
				// Stale snapshot captured before a change already merged.
				return
			}
			list[i] = task
			return
		}
	}
	replace(r.myTasks)
	replace(r.allTasks)
	if r.detail != nil && r.detail.ID == task.ID && task.Version >= r.detail.Version {
		c := task.Clone()
		r.detail = &c
	}
}

func (r *Reconciler) applyDeleted(taskID string) {
	r.myTasks = removeTask(r.myTasks, taskID)
	removed := false
	r.allTasks, removed = removeTaskReport(r.allTasks, taskID)
	if r.hasAll && removed && r.total > 0 {
		r.total--
	}
	if r.detail != nil && r.detail.ID == taskID {
		r.detail = nil
	}
}

func (r *Reconciler) applySubtaskStatus(data domain.SubtaskStatusChangedData) {
	setSubtask := func(t *domain.Task) {
		if t.ID != data.TaskID {
			return
		}
		for i := range t.Subtasks {
			if t.Subtasks[i].ID == data.SubtaskID {
				t.Subtasks[i].IsCompleted = data.IsCompleted
				return
			}
		}
	}
	for i := range r.myTasks {
		setSubtask(&r.myTasks[i])
	}
	for i := range r.allTasks {
		setSubtask(&r.allTasks[i])
	}
	if r.detail != nil {
		setSubtask(r.detail)
	}
}

func (r *Reconciler) applyTaskStatus(data domain.TaskStatusChangedData) {
	for i := range r.myTasks {
		if r.myTasks[i].ID == data.TaskID {
			r.myTasks[i].Status = data.Status
		}
	}
	for i := range r.allTasks {
		if r.allTasks[i].ID == data.TaskID {
			r.allTasks[i].Status = data.Status
		}
	}
	if r.detail != nil && r.detail.ID == data.TaskID {
		r.detail.Status = data.Status
	}
}

func removeTask(list []domain.Task, taskID string) []domain.Task {
	out, _ := removeTaskReport(list, taskID)
	return out
}

func removeTaskReport(list []domain.Task, taskID string) ([]domain.Task, bool) {
	for i := range list {
		if list[i].ID == taskID {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
