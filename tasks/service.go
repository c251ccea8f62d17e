package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"tasksync/domain"
)

// Store is the opaque mutation source backing the use cases. Reads return
// nil, nil when the task does not exist.
type Store interface {
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]domain.Task, error)
	ListUserTasks(ctx context.Context, userID string) ([]domain.Task, error)
}

// Notifier announces successful mutations. Implementations must never return
// an error to the mutation path; push is a side channel.
type Notifier interface {
	TaskCreated(ctx context.Context, task *domain.Task)
	TaskUpdated(ctx context.Context, task *domain.Task)
	TaskDeleted(ctx context.Context, taskID string, assignedTo []string)
	SubtaskStatusChanged(ctx context.Context, task *domain.Task, subtaskID string, isCompleted bool)
	TaskStatusChanged(ctx context.Context, task *domain.Task)
}

var (
	ErrInvalidStatus   = errors.New("invalid status value")
	ErrInvalidPriority = errors.New("invalid priority value")
	ErrMissingTitle    = errors.New("title is required")
)

// Service executes task mutations against the store and announces each
// success through the notifier.
type Service struct {
	store    Store
	notifier Notifier
	now      func() time.Time
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// SubtaskInput describes a subtask in a create or update request.
type SubtaskInput struct {
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// CreateTaskInput carries the fields of a new task.
type CreateTaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	Status      domain.Status   `json:"status"`
	DueDate     *time.Time      `json:"dueDate"`
	AssignedTo  []string        `json:"assignedTo"`
	Subtasks    []SubtaskInput  `json:"subtasks"`
}

// UpdateTaskInput carries partial changes; nil fields are left untouched.
type UpdateTaskInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *domain.Priority `json:"priority"`
	Status      *domain.Status   `json:"status"`
	DueDate     *time.Time       `json:"dueDate"`
	AssignedTo  *[]string        `json:"assignedTo"`
	Subtasks    *[]SubtaskInput  `json:"subtasks"`
}

// Create persists a new task and announces it to its assignees.
func (s *Service) Create(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	if in.Title == "" {
		return nil, ErrMissingTitle
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityLow
	}
	if !domain.ValidPriority(in.Priority) {
		return nil, ErrInvalidPriority
	}
	if in.Status == "" {
		in.Status = domain.StatusPending
	}
	if !domain.ValidStatus(in.Status) {
		return nil, ErrInvalidStatus
	}

	now := s.now().UTC()
	task := domain.Task{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		DueDate:     in.DueDate,
		AssignedTo:  in.AssignedTo,
		Subtasks:    buildSubtasks(in.Subtasks),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.AssignedTo == nil {
		task.AssignedTo = []string{}
	}
	task.Status = domain.DeriveStatus(task.Subtasks, task.Status)

	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	s.notifier.TaskCreated(ctx, &task)
	return &task, nil
}

// Update applies partial changes to a task. A missing task yields nil, nil
// and no event.
func (s *Service) Update(ctx context.Context, id string, in UpdateTaskInput) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		if !domain.ValidPriority(*in.Priority) {
			return nil, ErrInvalidPriority
		}
		task.Priority = *in.Priority
	}
	if in.Status != nil {
		if !domain.ValidStatus(*in.Status) {
			return nil, ErrInvalidStatus
		}
		task.Status = *in.Status
	}
	if in.DueDate != nil {
		due := *in.DueDate
		task.DueDate = &due
	}
	if in.AssignedTo != nil {
		task.AssignedTo = *in.AssignedTo
	}
	if in.Subtasks != nil {
		task.Subtasks = buildSubtasks(*in.Subtasks)
	}
	task.Status = domain.DeriveStatus(task.Subtasks, task.Status)
	task.Version++
	task.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	s.notifier.TaskUpdated(ctx, task)
	return task, nil
}

// Delete removes a task. Absence is a normal negative result, not an error,
// and fires no event. The pre-delete assignment set is captured so the
// deletion can still be announced after the record is gone.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	audience := append([]string(nil), task.AssignedTo...)

	if err := s.store.DeleteTask(ctx, id); err != nil {
		return false, err
	}
	s.notifier.TaskDeleted(ctx, id, audience)
	return true, nil
}

// SetSubtaskStatus flips a subtask's completion flag and recomputes the
// task's derived status. A missing task or subtask yields nil, nil.
func (s *Service) SetSubtaskStatus(ctx context.Context, taskID, subtaskID string, isCompleted bool) (*domain.Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	idx := -1
	for i := range task.Subtasks {
		if task.Subtasks[i].ID == subtaskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	task.Subtasks[idx].IsCompleted = isCompleted
	prevStatus := task.Status
	task.Status = domain.DeriveStatus(task.Subtasks, task.Status)
	task.Version++
	task.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	s.notifier.SubtaskStatusChanged(ctx, task, subtaskID, isCompleted)
	if task.Status != prevStatus {
		s.notifier.TaskStatusChanged(ctx, task)
	}
	return task, nil
}

// SetTaskStatus sets the status field directly. A missing task yields nil, nil.
func (s *Service) SetTaskStatus(ctx context.Context, taskID string, status domain.Status) (*domain.Task, error) {
	if !domain.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, nil
	}

	task.Status = status
	task.Version++
	task.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTask(ctx, *task); err != nil {
		return nil, err
	}
	s.notifier.TaskStatusChanged(ctx, task)
	return task, nil
}

// Get fetches a single task, nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.store.GetTask(ctx, id)
}

// List returns a page of all tasks plus the total count.
func (s *Service) List(ctx context.Context, page, limit int) ([]domain.Task, int, error) {
	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return all, total, nil
	}
	start := (page - 1) * limit
	if start >= total {
		return []domain.Task{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// ListForUser returns the tasks assigned to a user.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Task, error) {
	return s.store.ListUserTasks(ctx, userID)
}

func buildSubtasks(in []SubtaskInput) []domain.Subtask {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Subtask, 0, len(in))
	for _, st := range in {
		if st.Title == "" {
			continue
		}
		out = append(out, domain.Subtask{
			ID:          uuid.NewString(),
			Title:       st.Title,
			IsCompleted: st.IsCompleted,
		})
	}
	return out
}
