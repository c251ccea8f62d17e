package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"tasksync/domain"
	"tasksync/internal/consts"
)

type backend interface {
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) error
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context) ([]domain.Task, error)
	ListUserTasks(ctx context.Context, userID string) ([]domain.Task, error)
}

// Cache wraps a task store with redis-backed caching of per-user task lists.
// Mutations pass through and evict the affected users so the next snapshot
// fetch is fresh.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return c.base.ListTasks(ctx)
}

func (c *Cache) ListUserTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, userID); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListUserTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, userID, tasks)
	return tasks, nil
}

func (c *Cache) InsertTask(ctx context.Context, t domain.Task) error {
	if err := c.base.InsertTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, t.AssignedTo)
	return nil
}

func (c *Cache) UpdateTask(ctx context.Context, t domain.Task) error {
	// Evict both the previous and new assignment sets; a reassignment must
	// refresh users the task was taken away from.
	affected := t.AssignedTo
	if prev, err := c.base.GetTask(ctx, t.ID); err == nil && prev != nil {
		affected = append(append([]string(nil), affected...), prev.AssignedTo...)
	}
	if err := c.base.UpdateTask(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, affected)
	return nil
}

func (c *Cache) DeleteTask(ctx context.Context, id string) error {
	var affected []string
	if prev, err := c.base.GetTask(ctx, id); err == nil && prev != nil {
		affected = prev.AssignedTo
	}
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, affected)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, userTasksKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, userTasksKey(userID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, userTasksKey(userID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, userID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, userTasksKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userIDs []string) {
	if c.redis == nil || len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, u := range userIDs {
		if u != "" {
			keys = append(keys, userTasksKey(u))
		}
	}
	if len(keys) > 0 {
		_, _ = c.redis.Del(ctx, keys...).Result()
	}
}

func userTasksKey(userID string) string {
	return consts.TasksKeyPrefix + userID
}
