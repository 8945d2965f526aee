package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-reminder/internal/model"
)

var now = time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)

func TestDaysUntilDue(t *testing.T) {
	tests := []struct {
		name string
		due  time.Time
		want int
	}{
		{"past", now.Add(-time.Hour), 0},
		{"exactly now", now, 0},
		{"later today", now.Add(5 * time.Hour), 1},
		{"exactly two days", now.Add(48 * time.Hour), 2},
		{"two days and a minute", now.Add(48*time.Hour + time.Minute), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntilDue(tt.due, now))
		})
	}
}

func TestDueDateRules_NoDueDate(t *testing.T) {
	assert.Empty(t, DueDateRules(1, 1, nil, now))
}

func TestDueDateRules_Counts(t *testing.T) {
	for _, n := range []int{1, 2, 5, 30} {
		due := now.Add(time.Duration(n) * day)
		rules := DueDateRules(7, 3, &due, now)
		assert.Len(t, rules, n+5, "days=%d", n)
	}
}

func TestDueDateRules_TwoDays(t *testing.T) {
	due := now.Add(2 * day)
	rules := DueDateRules(7, 3, &due, now)
	require.Len(t, rules, 7)

	wantOffsets := []int{24 * 60, 48 * 60, 180, 60, 30, 0, 0}
	for i, r := range rules {
		assert.Equal(t, wantOffsets[i], r.OffsetMinutes)
		assert.Equal(t, model.TriggerActive, r.State)
		assert.False(t, r.IsTriggered)
		assert.Equal(t, uint(7), r.TaskID)
		assert.Equal(t, uint(3), r.UserID)
		assert.Equal(t, model.KindRule, r.Kind)
		assert.False(t, r.FireAt.After(due))
		assert.True(t, due.Add(-time.Duration(r.OffsetMinutes)*time.Minute).Equal(r.FireAt))
	}

	assert.Equal(t, model.ChannelPush, rules[5].Channel)
	assert.Equal(t, model.TypeOnDue, rules[5].TriggerType)
	assert.Equal(t, model.ChannelInApp, rules[6].Channel)
	assert.Equal(t, model.TypeOnDue, rules[6].TriggerType)
}

func TestDueDateRules_DueToday(t *testing.T) {
	due := now.Add(-2 * time.Hour)
	rules := DueDateRules(1, 1, &due, now)
	require.Len(t, rules, 5)
	// Past day-of instants are still emitted.
	assert.True(t, rules[0].FireAt.Before(now))
}

func TestReminder(t *testing.T) {
	due := now.Add(3 * time.Minute)

	r, ok := Reminder(4, 2, due, 2, model.ChannelInApp, now)
	require.True(t, ok)
	assert.Equal(t, model.KindReminder, r.Kind)
	assert.Equal(t, now.Add(time.Minute), r.FireAt)
	require.NotNil(t, r.ReminderSlot)
	assert.Equal(t, "4:2", *r.ReminderSlot)

	_, ok = Reminder(4, 2, due, 3, model.ChannelInApp, now)
	assert.False(t, ok, "fire instant equal to now is not in the future")

	_, ok = Reminder(4, 2, due, 5, model.ChannelInApp, now)
	assert.False(t, ok)
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 24*60+2*60+5, Offset{Days: 1, Hours: 2, Minutes: 5}.TotalMinutes())
	assert.True(t, Offset{Hours: -1}.Negative())
	assert.False(t, Offset{}.Negative())
}
