package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-reminder/internal/model"
	"task-reminder/internal/recurrence"
	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

func TestTaskService_CreateTaskValidation(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	cases := []struct {
		name  string
		input service.TaskInput
	}{
		{"empty title", service.TaskInput{Title: "  "}},
		{"recurring without type", service.TaskInput{Title: "rent", IsRecurring: true}},
		{"lowercase period", service.TaskInput{Title: "rent", IsRecurring: true, RecurrenceType: "monthly"}},
		{"unknown period", service.TaskInput{Title: "rent", IsRecurring: true, RecurrenceType: "Weekly"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.tasks.CreateTask(ctx, u.ID, tc.input)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}

	tasks, err := e.tasks.ListTasks(ctx, u.ID, repository.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_CreateTaskGeneratesTriggers(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{
		Title:          "pay rent",
		Category:       "home",
		DueDate:        at(48 * time.Hour),
		IsRecurring:    true,
		RecurrenceType: recurrence.Monthly,
	})
	require.NotNil(t, task.CategoryID)
	require.NotNil(t, task.NextOccurrence)
	assert.True(t, task.NextOccurrence.Equal(base.Add(48*time.Hour).AddDate(0, 1, 0)))

	triggers, err := e.triggersRepo.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, triggers, 7)
	for _, tr := range triggers {
		assert.Equal(t, model.TriggerActive, tr.State)
		assert.False(t, tr.IsTriggered)
		assert.Equal(t, u.ID, tr.UserID)
		assert.False(t, tr.FireAt.After(*task.DueDate))
	}
}

func TestTaskService_CreateTaskWithoutDueDate(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")

	task := e.task(t, u.ID, service.TaskInput{Title: "someday", IsRecurring: true, RecurrenceType: recurrence.Yearly})
	assert.Nil(t, task.NextOccurrence)

	triggers, err := e.triggersRepo.ListByTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestTaskService_CompleteRecurringTask(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()
	due := base.Add(48 * time.Hour)

	task := e.task(t, u.ID, service.TaskInput{
		Title:          "pay rent",
		Description:    "transfer to landlord",
		DueDate:        &due,
		IsRecurring:    true,
		RecurrenceType: recurrence.Monthly,
	})

	res, err := e.tasks.CompleteTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, res.Task.Status)
	require.NotNil(t, res.Task.CompletedAt)

	require.NotNil(t, res.Next)
	next := res.Next
	assert.Equal(t, model.TaskPending, next.Status)
	assert.Equal(t, "pay rent", next.Title)
	assert.Equal(t, "transfer to landlord", next.Description)
	assert.Equal(t, recurrence.Monthly, next.RecurrenceType)
	assert.True(t, next.IsRecurring)
	require.NotNil(t, next.ParentTaskID)
	assert.Equal(t, task.ID, *next.ParentTaskID)
	assert.True(t, next.DueDate.Equal(due.AddDate(0, 1, 0)))
	assert.True(t, next.NextOccurrence.Equal(due.AddDate(0, 2, 0)))

	pending, err := e.tasks.ListTasks(ctx, u.ID, repository.TaskFilter{Status: model.TaskPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, next.ID, pending[0].ID)

	old, err := e.triggersRepo.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, map[model.TriggerState]int{model.TriggerDisabled: 7}, byState(old))

	fresh, err := e.triggersRepo.ListByTask(ctx, next.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh)
	assert.Equal(t, len(fresh), byState(fresh)[model.TriggerActive])

	inbox, err := e.inbox.List(ctx, u.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Task completed", inbox[0].Title)
	assert.Equal(t, model.NotificationSent, inbox[0].Status)

	_, err = e.tasks.CompleteTask(ctx, u.ID, task.ID)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestTaskService_CompleteReopenCompleteKeepsOneSuccessor(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{Title: "pay rent", DueDate: at(48 * time.Hour), IsRecurring: true, RecurrenceType: recurrence.Monthly})

	first, err := e.tasks.CompleteTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Next)

	_, err = e.tasks.MarkPending(ctx, u.ID, task.ID)
	require.NoError(t, err)

	second, err := e.tasks.CompleteTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, second.Task.Status)
	assert.Nil(t, second.Next)

	assert.Equal(t, 1, successorCount(t, e, u.ID, task.ID))
}

func TestTaskService_ConcurrentCompleteSpawnsOnce(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{Title: "pay rent", DueDate: at(48 * time.Hour), IsRecurring: true, RecurrenceType: recurrence.Monthly})

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.tasks.CompleteTask(ctx, u.ID, task.ID)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, service.ErrValidation)
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, successorCount(t, e, u.ID, task.ID))

	inbox, err := e.inbox.List(ctx, u.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func successorCount(t *testing.T, e *env, userID, parentID uint) int {
	t.Helper()
	tasks, err := e.tasks.ListTasks(context.Background(), userID, repository.TaskFilter{})
	require.NoError(t, err)
	n := 0
	for _, task := range tasks {
		if task.ParentTaskID != nil && *task.ParentTaskID == parentID {
			n++
		}
	}
	return n
}

func TestTaskService_CompleteOneOffTask(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{Title: "call bank", DueDate: at(time.Hour)})
	res, err := e.tasks.CompleteTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Next)

	reopened, err := e.tasks.MarkPending(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, reopened.Status)
	assert.Nil(t, reopened.CompletedAt)
}

func TestTaskService_UpdateTaskRecomputesNextOccurrence(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{
		Title:          "insurance",
		DueDate:        at(48 * time.Hour),
		IsRecurring:    true,
		RecurrenceType: recurrence.Monthly,
	})

	newDue := base.Add(10 * 24 * time.Hour)
	yearly := recurrence.Yearly
	updated, err := e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{DueDate: &newDue, RecurrenceType: &yearly})
	require.NoError(t, err)
	assert.True(t, updated.DueDate.Equal(newDue))
	assert.True(t, updated.NextOccurrence.Equal(newDue.AddDate(1, 0, 0)))

	// The initial batch is not regenerated on edit.
	triggers, err := e.triggersRepo.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, triggers, 7)

	off := false
	updated, err = e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{IsRecurring: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsRecurring)
	assert.Empty(t, updated.RecurrenceType)
	assert.Nil(t, updated.NextOccurrence)

	on := true
	_, err = e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{IsRecurring: &on})
	assert.ErrorIs(t, err, service.ErrValidation)

	monthly := recurrence.Monthly
	_, err = e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{RecurrenceType: &monthly})
	assert.ErrorIs(t, err, service.ErrValidation)
	unchanged, err := e.tasks.GetTask(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, unchanged.IsRecurring)
	assert.Empty(t, unchanged.RecurrenceType)

	_, err = e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{IsRecurring: &off, RecurrenceType: &monthly})
	assert.ErrorIs(t, err, service.ErrValidation)

	none := recurrence.Period("")
	_, err = e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{RecurrenceType: &none})
	assert.NoError(t, err)
}

func TestTaskService_ClearDueDateDropsNextOccurrence(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{
		Title:          "insurance",
		DueDate:        at(48 * time.Hour),
		IsRecurring:    true,
		RecurrenceType: recurrence.Monthly,
	})
	require.NotNil(t, task.NextOccurrence)

	cleared, err := e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
	assert.Nil(t, cleared.NextOccurrence)
	assert.True(t, cleared.IsRecurring)
	assert.Equal(t, recurrence.Monthly, cleared.RecurrenceType)

	newDue := base.Add(5 * 24 * time.Hour)
	restored, err := e.tasks.UpdateTask(ctx, u.ID, task.ID, service.TaskPatch{DueDate: &newDue})
	require.NoError(t, err)
	require.NotNil(t, restored.NextOccurrence)
	assert.True(t, restored.NextOccurrence.Equal(newDue.AddDate(0, 1, 0)))
}

func TestTaskService_StopRecurrence(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	task := e.task(t, u.ID, service.TaskInput{Title: "rent", DueDate: at(48 * time.Hour), IsRecurring: true, RecurrenceType: recurrence.Every3Months})

	stopped, err := e.tasks.StopRecurrence(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.False(t, stopped.IsRecurring)
	assert.Empty(t, stopped.RecurrenceType)
	assert.Nil(t, stopped.NextOccurrence)

	triggers, err := e.triggersRepo.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, byState(triggers)[model.TriggerActive])

	_, err = e.tasks.StopRecurrence(ctx, u.ID, task.ID)
	assert.ErrorIs(t, err, service.ErrNotRecurring)
}

func TestTaskService_DeleteTask(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann")
	bob := e.user(t, "bob")
	ctx := context.Background()

	task := e.task(t, ann.ID, service.TaskInput{Title: "report", DueDate: at(30 * time.Minute)})
	_, err := e.dispatch.CheckAndFire(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, e.tasks.DeleteTask(ctx, bob.ID, task.ID), service.ErrNotFound)
	require.NoError(t, e.tasks.DeleteTask(ctx, ann.ID, task.ID))

	_, err = e.tasks.GetTask(ctx, ann.ID, task.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	triggers, err := e.triggersRepo.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Zero(t, byState(triggers)[model.TriggerActive])

	inbox, err := e.inbox.List(ctx, ann.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestTaskService_ProcessRecurringTasks(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	// Completed elsewhere without advancing its recurrence.
	due := base.Add(-40 * 24 * time.Hour)
	missed := &model.Task{
		UserID:         u.ID,
		Title:          "water meter",
		Status:         model.TaskCompleted,
		DueDate:        &due,
		IsRecurring:    true,
		RecurrenceType: recurrence.Monthly,
		NextOccurrence: recurrence.NextOccurrence(&due, recurrence.Monthly),
	}
	require.NoError(t, e.tasksRepo.Create(ctx, missed))

	// Completed through the service, so it already has a successor.
	done := e.task(t, u.ID, service.TaskInput{Title: "rent", DueDate: at(-35 * 24 * time.Hour), IsRecurring: true, RecurrenceType: recurrence.Monthly})
	_, err := e.tasks.CompleteTask(ctx, u.ID, done.ID)
	require.NoError(t, err)

	run, err := e.tasks.ProcessRecurringTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Generated)
	require.Len(t, run.Tasks, 1)
	assert.Equal(t, "water meter", run.Tasks[0].Title)
	assert.True(t, run.Tasks[0].DueDate.Equal(due.AddDate(0, 1, 0)))

	again, err := e.tasks.ProcessRecurringTasks(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Zero(t, again.Generated)
}

func TestTaskService_OverdueAndUpcoming(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	late := e.task(t, u.ID, service.TaskInput{Title: "late", DueDate: at(-time.Hour)})
	soon := e.task(t, u.ID, service.TaskInput{Title: "soon", DueDate: at(72 * time.Hour)})
	e.task(t, u.ID, service.TaskInput{Title: "far", DueDate: at(30 * 24 * time.Hour)})

	overdue, err := e.tasks.ListOverdue(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)

	upcoming, err := e.tasks.ListUpcoming(ctx, u.ID, 7)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, soon.ID, upcoming[0].ID)
}
