package notify

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"tasksync/domain"
	"tasksync/session"
)

// Deliverer fans an encoded event out to every live session in the given rooms.
type Deliverer interface {
	Deliver(rooms []string, payload []byte)
}

// envelope carries an event together with its resolved audience across the
// redis channel, so remote instances deliver without re-resolving rooms.
type envelope struct {
	Rooms []string     `json:"rooms"`
	Event domain.Event `json:"event"`
}

// Publisher is the single point through which mutation use cases announce
// task events. Publishing is a side channel: every failure is logged and
// swallowed, a mutation's result never depends on delivery.
type Publisher struct {
	reg     Deliverer
	rc      *redis.Client
	channel string
	log     *log.Logger
}

// NewPublisher creates a publisher. rc may be nil, in which case events are
// delivered to the local registry only.
func NewPublisher(reg Deliverer, rc *redis.Client, channel string, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{reg: reg, rc: rc, channel: channel, log: logger}
}

// TaskCreated announces a newly persisted task to its assignees.
func (p *Publisher) TaskCreated(ctx context.Context, task *domain.Task) {
	p.publishTask(ctx, domain.TaskCreated, task)
}

// TaskUpdated announces a full updated task snapshot to its assignees.
func (p *Publisher) TaskUpdated(ctx context.Context, task *domain.Task) {
	p.publishTask(ctx, domain.TaskUpdated, task)
}

// TaskDeleted announces a deletion. assignedTo must be the assignment set
// captured before the delete; afterwards the audience is unrecoverable.
func (p *Publisher) TaskDeleted(ctx context.Context, taskID string, assignedTo []string) {
	data, err := sonic.Marshal(domain.TaskDeletedData{TaskID: taskID})
	if err != nil {
		p.log.Errorf("marshal %s payload: %v", domain.TaskDeleted, err)
		return
	}
	p.publish(ctx, domain.Event{Kind: domain.TaskDeleted, TaskID: taskID, Data: data}, assignedTo)
}

// SubtaskStatusChanged announces a single subtask completion flip.
func (p *Publisher) SubtaskStatusChanged(ctx context.Context, task *domain.Task, subtaskID string, isCompleted bool) {
	if task == nil {
		return
	}
	data, err := sonic.Marshal(domain.SubtaskStatusChangedData{
		TaskID:      task.ID,
		SubtaskID:   subtaskID,
		IsCompleted: isCompleted,
	})
	if err != nil {
		p.log.Errorf("marshal %s payload: %v", domain.SubtaskStatusChanged, err)
		return
	}
	p.publish(ctx, domain.Event{Kind: domain.SubtaskStatusChanged, TaskID: task.ID, Data: data}, task.AssignedTo)
}

// TaskStatusChanged announces the task's authoritative status value.
func (p *Publisher) TaskStatusChanged(ctx context.Context, task *domain.Task) {
	if task == nil {
		return
	}
	data, err := sonic.Marshal(domain.TaskStatusChangedData{TaskID: task.ID, Status: task.Status})
	if err != nil {
		p.log.Errorf("marshal %s payload: %v", domain.TaskStatusChanged, err)
		return
	}
	p.publish(ctx, domain.Event{Kind: domain.TaskStatusChanged, TaskID: task.ID, Data: data}, task.AssignedTo)
}

func (p *Publisher) publishTask(ctx context.Context, kind string, task *domain.Task) {
	if task == nil {
		return
	}
	data, err := sonic.Marshal(task)
	if err != nil {
		p.log.Errorf("marshal %s payload: %v", kind, err)
		return
	}
	p.publish(ctx, domain.Event{Kind: kind, TaskID: task.ID, Data: data}, task.AssignedTo)
}

// publish resolves the audience and hands off. The audience is exactly the
// per-assignee user rooms; an empty assignment set is a normal no-op.
func (p *Publisher) publish(ctx context.Context, ev domain.Event, assignedTo []string) {
	rooms := audience(assignedTo)
	if len(rooms) == 0 {
		return
	}

	payload, err := sonic.Marshal(envelope{Rooms: rooms, Event: ev})
	if err != nil {
		p.log.Errorf("marshal %s envelope: %v", ev.Kind, err)
		return
	}

	if p.rc != nil {
		err := p.rc.Publish(ctx, p.channel, payload).Err()
		if err == nil {
			// The subscriber loop delivers to the local registry too.
			return
		}
		p.log.Errorf("unable to publish %s for task %s to %s: %v", ev.Kind, ev.TaskID, p.channel, err)
	}

	if p.reg == nil {
		p.log.Errorf("delivery subsystem not initialized, dropping %s for task %s", ev.Kind, ev.TaskID)
		return
	}

	data, err := sonic.Marshal(ev)
	if err != nil {
		p.log.Errorf("marshal %s event: %v", ev.Kind, err)
		return
	}
	p.reg.Deliver(rooms, data)
}

func audience(assignedTo []string) []string {
	rooms := make([]string, 0, len(assignedTo))
	seen := make(map[string]struct{}, len(assignedTo))
	for _, userID := range assignedTo {
		if userID == "" {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		rooms = append(rooms, session.UserRoom(userID))
	}
	return rooms
}
