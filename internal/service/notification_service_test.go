package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-reminder/internal/model"
	"task-reminder/internal/repository"
	"task-reminder/internal/service"
)

func TestNotificationService_ReadFlow(t *testing.T) {
	e := newEnv(t)
	ann := e.user(t, "ann")
	bob := e.user(t, "bob")
	ctx := context.Background()
	e.task(t, ann.ID, service.TaskInput{Title: "report", DueDate: at(0)})

	_, err := e.dispatch.CheckAndFire(ctx)
	require.NoError(t, err)

	unread, err := e.inbox.UnreadCount(ctx, ann.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, unread)

	list, err := e.inbox.List(ctx, ann.ID, repository.NotificationFilter{Channel: model.ChannelInApp})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = e.inbox.MarkRead(ctx, bob.ID, list[0].ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	read, err := e.inbox.MarkRead(ctx, ann.ID, list[0].ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	require.NotNil(t, read.ReadAt)

	n, err := e.inbox.MarkAllRead(ctx, ann.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	unread, err = e.inbox.UnreadCount(ctx, ann.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	assert.ErrorIs(t, e.inbox.Delete(ctx, bob.ID, list[0].ID), service.ErrNotFound)
	require.NoError(t, e.inbox.Delete(ctx, ann.ID, list[0].ID))
	_, err = e.inbox.Get(ctx, ann.ID, list[0].ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestNotificationService_PreferencesGateDelivery(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	off := false
	updated, err := e.inbox.UpdatePreferences(ctx, u.ID, service.Preferences{Push: &off})
	require.NoError(t, err)
	assert.False(t, updated.PushEnabled)
	assert.True(t, updated.InAppEnabled)
	assert.True(t, updated.EmailEnabled)

	_, err = e.inbox.UpdatePreferences(ctx, 4242, service.Preferences{Push: &off})
	assert.ErrorIs(t, err, service.ErrNotFound)

	e.task(t, u.ID, service.TaskInput{Title: "report", DueDate: at(-time.Minute)})
	_, err = e.dispatch.CheckAndFire(ctx)
	require.NoError(t, err)

	for _, msg := range e.dispatcher.sent {
		assert.False(t, msg.Recipient.PushEnabled)
	}
}

func TestDigestService_DailySummary(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "ann")
	ctx := context.Background()

	e.task(t, u.ID, service.TaskInput{Title: "late <fee>", DueDate: at(-time.Hour), Category: "bills"})
	e.task(t, u.ID, service.TaskInput{Title: "standup", DueDate: at(24 * time.Hour)})
	e.task(t, u.ID, service.TaskInput{Title: "rent", DueDate: at(10 * 24 * time.Hour), IsRecurring: true, RecurrenceType: "Monthly"})
	e.task(t, u.ID, service.TaskInput{Title: "someday"})

	text, err := e.digest.DailySummary(ctx, *u, time.UTC)
	require.NoError(t, err)

	assert.Contains(t, text, "Daily summary")
	assert.Contains(t, text, "19.10.2026")
	assert.Contains(t, text, "late &lt;fee&gt; <i>(bills)</i>")
	assert.Contains(t, text, "<b>overdue</b>")
	assert.Contains(t, text, "🔁 Monthly · next 2026-11-29")

	overdue := strings.Index(text, "Overdue")
	soon := strings.Index(text, "Due soon")
	later := strings.Index(text, "Later")
	assert.Less(t, overdue, strings.Index(text, "late &lt;fee&gt;"))
	assert.Less(t, soon, strings.Index(text, "standup"))
	assert.Less(t, later, strings.Index(text, "someday"))
	assert.Less(t, strings.Index(text, "standup"), later)
}
