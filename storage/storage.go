package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"tasksync/domain"
)

// All tasks live in a single partition; assignment filtering happens in
// memory because the assignment set is a JSON column.
const taskPartition = "task"

// Storage provides access to the backing task table.
type Storage struct {
	taskTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: svc.NewClient(tasksTable)}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description,omitempty"`
	Priority    string `json:"Priority"`
	Status      string `json:"Status"`
	DueDate     string `json:"DueDate,omitempty"`
	AssignedTo  string `json:"AssignedTo"`
	Subtasks    string `json:"Subtasks,omitempty"`
	Version     int64  `json:"Version,string"`
	VersionType string `json:"Version@odata.type"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

const edmInt64 = "Edm.Int64"

func encodeTask(t domain.Task) ([]byte, error) {
	assigned, err := json.Marshal(t.AssignedTo)
	if err != nil {
		return nil, err
	}
	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: taskPartition, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		AssignedTo:  string(assigned),
		Version:     t.Version,
		VersionType: edmInt64,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.DueDate != nil {
		ent.DueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if len(t.Subtasks) > 0 {
		subtasks, err := json.Marshal(t.Subtasks)
		if err != nil {
			return nil, err
		}
		ent.Subtasks = string(subtasks)
	}
	return json.Marshal(ent)
}

func decodeTask(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := json.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	t := domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Priority:    domain.Priority(ent.Priority),
		Status:      domain.Status(ent.Status),
		Version:     ent.Version,
	}
	if ent.AssignedTo != "" {
		if err := json.Unmarshal([]byte(ent.AssignedTo), &t.AssignedTo); err != nil {
			return domain.Task{}, err
		}
	}
	if ent.Subtasks != "" {
		if err := json.Unmarshal([]byte(ent.Subtasks), &t.Subtasks); err != nil {
			return domain.Task{}, err
		}
	}
	if ent.DueDate != "" {
		due, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueDate = &due
	}
	if ent.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.CreatedAt = created
	}
	if ent.UpdatedAt != "" {
		updated, err := time.Parse(time.RFC3339Nano, ent.UpdatedAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.UpdatedAt = updated
	}
	return t, nil
}

// GetTask retrieves a task if present, or nil when the row does not exist.
func (s *Storage) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	ent, err := s.taskTable.GetEntity(ctx, taskPartition, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	t, err := decodeTask(ent.Value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTask creates a new task row.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTask(t)
	if err == nil {
		_, err = s.taskTable.AddEntity(ctx, payload, nil)
	}
	return err
}

// UpdateTask replaces an existing task row with the given snapshot.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	payload, err := encodeTask(t)
	if err == nil {
		et := azcore.ETagAny
		_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	}
	return err
}

// DeleteTask removes a task row. Deleting an absent row is not an error; the
// use case resolves existence before calling.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, taskPartition, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil
		}
	}
	return err
}

// ListTasks retrieves every task, newest first.
func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + taskPartition + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			t, err := decodeTask(e)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks, nil
}

// ListUserTasks retrieves the tasks assigned to the given user, newest first.
func (s *Storage) ListUserTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	all, err := s.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasks := []domain.Task{}
	for _, t := range all {
		for _, u := range t.AssignedTo {
			if u == userID {
				tasks = append(tasks, t)
				break
			}
		}
	}
	return tasks, nil
}
