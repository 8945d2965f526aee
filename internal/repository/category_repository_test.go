package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-reminder/internal/model"
	"task-reminder/internal/repository"
	"task-reminder/internal/repository/repotest"
)

func TestCategoryRepository_GetOrCreate(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewCategoryRepository(db)
	ctx := context.Background()
	user, _ := seedTask(t, db)

	blank, err := repo.GetOrCreate(ctx, user.ID, "   ")
	require.NoError(t, err)
	assert.Nil(t, blank)

	first, err := repo.GetOrCreate(ctx, user.ID, " home ")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "home", first.Name)

	again, err := repo.GetOrCreate(ctx, user.ID, "home")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other := &model.User{Username: "bob"}
	require.NoError(t, repository.NewUserRepository(db).Create(ctx, other))
	theirs, err := repo.GetOrCreate(ctx, other.ID, "home")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, theirs.ID)
}

func TestCategoryRepository_ListWithCounts(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewCategoryRepository(db)
	tasks := repository.NewTaskRepository(db)
	ctx := context.Background()
	user, _ := seedTask(t, db)

	home, err := repo.GetOrCreate(ctx, user.ID, "home")
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, user.ID, "work")
	require.NoError(t, err)

	for _, status := range []model.TaskStatus{model.TaskPending, model.TaskPending, model.TaskCompleted} {
		task := &model.Task{UserID: user.ID, CategoryID: &home.ID, Title: "chore", Status: status}
		require.NoError(t, tasks.Create(ctx, task))
	}

	counts, err := repo.ListWithCounts(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "home", counts[0].Name)
	assert.Equal(t, int64(2), counts[0].Pending)
	assert.Equal(t, "work", counts[1].Name)
	assert.Zero(t, counts[1].Pending)
}
