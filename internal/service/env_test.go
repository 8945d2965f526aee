package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"task-reminder/internal/clock"
	"task-reminder/internal/model"
	"task-reminder/internal/notify"
	"task-reminder/internal/repository"
	"task-reminder/internal/repository/repotest"
	"task-reminder/internal/service"
)

var base = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

// recorder is a Dispatcher that keeps every message and fails configured channels.
type recorder struct {
	mu   sync.Mutex
	sent []notify.Message
	fail map[model.Channel]string
}

func (r *recorder) Send(_ context.Context, msg notify.Message) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	if reason, ok := r.fail[msg.Channel]; ok {
		return notify.Failed(reason)
	}
	return notify.Delivered()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type env struct {
	clock         *clock.Fake
	dispatcher    *recorder
	users         *repository.UserRepository
	tasksRepo     *repository.TaskRepository
	triggersRepo  *repository.TriggerRepository
	notifications *repository.NotificationRepository

	tasks     *service.TaskService
	reminders *service.ReminderService
	dispatch  *service.DispatchService
	inbox     *service.NotificationService
	digest    *service.DigestService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := repotest.Open(t)

	e := &env{
		clock:         clock.NewFake(base),
		dispatcher:    &recorder{fail: map[model.Channel]string{}},
		users:         repository.NewUserRepository(db),
		tasksRepo:     repository.NewTaskRepository(db),
		triggersRepo:  repository.NewTriggerRepository(db),
		notifications: repository.NewNotificationRepository(db),
	}
	categories := repository.NewCategoryRepository(db)
	e.tasks = service.NewTaskService(e.tasksRepo, categories, e.triggersRepo, e.notifications, e.clock)
	e.reminders = service.NewReminderService(e.tasksRepo, e.triggersRepo, e.clock)
	e.dispatch = service.NewDispatchService(e.triggersRepo, e.tasksRepo, e.users, e.notifications, e.dispatcher, e.clock, time.Second)
	e.inbox = service.NewNotificationService(e.notifications, e.users, e.clock)
	e.digest = service.NewDigestService(e.tasksRepo, categories, e.clock)
	return e
}

func (e *env) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, FirstName: name}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) task(t *testing.T, userID uint, input service.TaskInput) *model.Task {
	t.Helper()
	task, err := e.tasks.CreateTask(context.Background(), userID, input)
	require.NoError(t, err)
	return task
}

func at(d time.Duration) *time.Time {
	v := base.Add(d)
	return &v
}

func byState(triggers []model.Trigger) map[model.TriggerState]int {
	out := map[model.TriggerState]int{}
	for _, tr := range triggers {
		out[tr.State]++
	}
	return out
}
