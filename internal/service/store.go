package service

import (
	"context"
	"time"

	"task-reminder/internal/model"
	"task-reminder/internal/repository"
)

// TaskStore is the task persistence used by the services. *repository.TaskRepository implements it.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error)
	Get(ctx context.Context, taskID uint) (*model.Task, error)
	ListByUser(ctx context.Context, userID uint, filter repository.TaskFilter) ([]model.Task, error)
	ListOverdue(ctx context.Context, userID uint, now time.Time) ([]model.Task, error)
	ListUpcoming(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error)
	ListDueForRecurrence(ctx context.Context, now time.Time) ([]model.Task, error)
	Update(ctx context.Context, task *model.Task, updates map[string]interface{}) error
	Complete(ctx context.Context, task *model.Task, completedAt time.Time, next *model.Task, rules repository.SuccessorRules) (bool, error)
	CreateSuccessor(ctx context.Context, parentID uint, next *model.Task, rules repository.SuccessorRules) (bool, error)
	Delete(ctx context.Context, userID, taskID uint) error
}

// TriggerStore persists triggers and their state machine. *repository.TriggerRepository implements it.
type TriggerStore interface {
	Create(ctx context.Context, trigger *model.Trigger) error
	CreateBatch(ctx context.Context, triggers []model.Trigger) error
	FindByID(ctx context.Context, id uint) (*model.Trigger, error)
	FindBySlot(ctx context.Context, slot string) (*model.Trigger, error)
	ListByTask(ctx context.Context, taskID uint) ([]model.Trigger, error)
	ListByUser(ctx context.Context, userID uint, filter repository.TriggerFilter) ([]model.Trigger, error)
	ListUpcoming(ctx context.Context, userID uint, from, to time.Time) ([]model.Trigger, error)
	FindDue(ctx context.Context, now time.Time) ([]model.Trigger, error)
	MarkTriggered(ctx context.Context, id uint, firedAt time.Time, snapshot model.TriggerSnapshot) error
	AppendHistory(ctx context.Context, id uint, entry model.TriggerHistory) error
	Update(ctx context.Context, trigger *model.Trigger, updates map[string]interface{}) error
	DisableAllForTask(ctx context.Context, taskID uint) (int64, error)
	Snooze(ctx context.Context, id uint) error
	Unsnooze(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
	DeleteTriggered(ctx context.Context, userID uint) (int64, error)
}

// NotificationStore persists delivery records. *repository.NotificationRepository implements it.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) (bool, error)
	RecordDelivery(ctx context.Context, id uint, status model.NotificationStatus, at time.Time, reason string) error
	FindByID(ctx context.Context, userID, id uint) (*model.Notification, error)
	ListByUser(ctx context.Context, userID uint, filter repository.NotificationFilter) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint, at time.Time) error
	MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, userID, id uint) error
}

// UserStore resolves notification recipients.
type UserStore interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
	ListAll(ctx context.Context) ([]model.User, error)
	UpdatePreferences(ctx context.Context, user *model.User, push, inApp, email *bool) error
}

var (
	_ TaskStore         = (*repository.TaskRepository)(nil)
	_ TriggerStore      = (*repository.TriggerRepository)(nil)
	_ NotificationStore = (*repository.NotificationRepository)(nil)
	_ UserStore         = (*repository.UserRepository)(nil)
)
