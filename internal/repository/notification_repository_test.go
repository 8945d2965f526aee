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

func TestNotificationRepository_CreateDeduplicates(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewNotificationRepository(db)
	ctx := context.Background()
	user, task := seedTask(t, db)

	n := &model.Notification{UserID: user.ID, TaskID: task.ID, Channel: model.ChannelInApp, Message: "due soon", Status: model.NotificationPending, DedupKey: "1@100"}
	created, err := repo.Create(ctx, n)
	require.NoError(t, err)
	assert.True(t, created)

	dup := &model.Notification{UserID: user.ID, TaskID: task.ID, Channel: model.ChannelInApp, Message: "due soon", Status: model.NotificationPending, DedupKey: "1@100"}
	created, err = repo.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	all, err := repo.ListByUser(ctx, user.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestNotificationRepository_ReadFlow(t *testing.T) {
	db := repotest.Open(t)
	repo := repository.NewNotificationRepository(db)
	ctx := context.Background()
	user, task := seedTask(t, db)

	for _, key := range []string{"a", "b", "c"} {
		_, err := repo.Create(ctx, &model.Notification{UserID: user.ID, TaskID: task.ID, Channel: model.ChannelPush, Message: key, Status: model.NotificationPending, DedupKey: key})
		require.NoError(t, err)
	}

	count, err := repo.CountUnread(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	all, err := repo.ListByUser(ctx, user.ID, repository.NotificationFilter{})
	require.NoError(t, err)
	require.NoError(t, repo.MarkRead(ctx, user.ID, all[0].ID, base))

	unread := false
	list, err := repo.ListByUser(ctx, user.ID, repository.NotificationFilter{IsRead: &unread})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := repo.MarkAllRead(ctx, user.ID, base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.RecordDelivery(ctx, all[1].ID, model.NotificationFailed, base, "no token"))
	failed, err := repo.ListByUser(ctx, user.ID, repository.NotificationFilter{Status: model.NotificationFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "no token", failed[0].ErrorMessage)
	assert.Nil(t, failed[0].SentAt)

	require.NoError(t, repo.Delete(ctx, user.ID, all[2].ID))
	assert.Error(t, repo.Delete(ctx, user.ID, all[2].ID))
	_, err = repo.FindByID(ctx, user.ID, all[2].ID)
	assert.Error(t, err)
}
