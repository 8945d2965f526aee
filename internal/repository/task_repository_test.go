package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-reminder/internal/model"
	"task-reminder/internal/repository"
	"task-reminder/internal/repository/repotest"
)

func oneTrigger(next *model.Task) []model.Trigger {
	return []model.Trigger{newTrigger(next, *next.DueDate)}
}

func nextOf(task *model.Task) *model.Task {
	due := task.DueDate.AddDate(0, 1, 0)
	return &model.Task{UserID: task.UserID, Title: task.Title, Status: model.TaskPending, DueDate: &due}
}

func TestTaskRepository_CompleteClaimsOnce(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewTaskRepository(db)
	triggers := repository.NewTriggerRepository(db)
	ctx := context.Background()
	_, task := seedTask(t, db)
	require.NoError(t, triggers.CreateBatch(ctx, []model.Trigger{newTrigger(task, base)}))

	next := nextOf(task)
	created, err := repo.Complete(ctx, task, base, next, oneTrigger)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.TaskCompleted, task.Status)
	require.NotNil(t, next.ParentTaskID)
	assert.Equal(t, task.ID, *next.ParentTaskID)

	old, err := triggers.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, model.TriggerDisabled, old[0].State)

	fresh, err := triggers.ListByTask(ctx, next.ID)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, model.TriggerActive, fresh[0].State)

	stored, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	_, err = repo.Complete(ctx, stored, base.Add(time.Minute), nextOf(stored), oneTrigger)
	assert.ErrorIs(t, err, repository.ErrAlreadyCompleted)

	// Reopened and completed again: the claim succeeds, the successor is not repeated.
	require.NoError(t, repo.Update(ctx, stored, map[string]interface{}{"status": model.TaskPending, "completed_at": nil}))
	created, err = repo.Complete(ctx, stored, base.Add(time.Hour), nextOf(stored), oneTrigger)
	require.NoError(t, err)
	assert.False(t, created)

	var successors int64
	require.NoError(t, db.Unscoped().Model(&model.Task{}).Where("parent_task_id = ?", task.ID).Count(&successors).Error)
	assert.Equal(t, int64(1), successors)
}

func TestTaskRepository_CreateSuccessor(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()
	_, task := seedTask(t, db)

	next := nextOf(task)
	created, err := repo.CreateSuccessor(ctx, task.ID, next, nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, next.ID)

	created, err = repo.CreateSuccessor(ctx, task.ID, nextOf(task), nil)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.CreateSuccessor(ctx, 9999, nextOf(task), nil)
	assert.Error(t, err)
}
