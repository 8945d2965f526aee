// Package cadence derives reminder trigger times from a task's due date.
//
// Everything here is pure: callers pass the current time and persist the result.
package cadence

import (
	"fmt"
	"time"

	"task-reminder/internal/model"
)

const day = 24 * time.Hour

// DayOfOffsets are the minutes-before-due of the fixed same-day rules (3h, 1h, 30m).
var DayOfOffsets = []int{180, 60, 30}

// LegacyOffsets are the minutes-before-due of the simple reminder flavor.
var LegacyOffsets = []int{5, 4, 3, 2, 1}

// DaysUntilDue is the number of started days between now and due, never negative.
func DaysUntilDue(due, now time.Time) int {
	left := due.Sub(now)
	if left <= 0 {
		return 0
	}
	days := int(left / day)
	if left%day != 0 {
		days++
	}
	return days
}

// DueDateRules returns the initial rule batch for a task: one push rule per
// remaining day, the day-of rules, then push and in-app rules at the due instant.
// Instants that already passed are still emitted; the scheduler fires them on its
// next scan.
func DueDateRules(taskID, userID uint, due *time.Time, now time.Time) []model.Trigger {
	if due == nil {
		return nil
	}

	days := DaysUntilDue(*due, now)
	rules := make([]model.Trigger, 0, days+len(DayOfOffsets)+2)

	for k := 1; k <= days; k++ {
		rules = append(rules, rule(taskID, userID, *due, model.TypeBeforeDue, model.ChannelPush, k*24*60))
	}
	for _, minutes := range DayOfOffsets {
		rules = append(rules, rule(taskID, userID, *due, model.TypeBeforeDue, model.ChannelPush, minutes))
	}
	rules = append(rules,
		rule(taskID, userID, *due, model.TypeOnDue, model.ChannelPush, 0),
		rule(taskID, userID, *due, model.TypeOnDue, model.ChannelInApp, 0),
	)
	return rules
}

func rule(taskID, userID uint, due time.Time, typ model.TriggerType, ch model.Channel, minutes int) model.Trigger {
	return model.Trigger{
		TaskID:        taskID,
		UserID:        userID,
		Kind:          model.KindRule,
		TriggerType:   typ,
		Channel:       ch,
		OffsetMinutes: minutes,
		FireAt:        BeforeDue(due, minutes).UTC(),
		State:         model.TriggerActive,
	}
}

// BeforeDue returns the instant minutes before due.
func BeforeDue(due time.Time, minutes int) time.Time {
	return due.Add(-time.Duration(minutes) * time.Minute)
}

// ReminderSlot identifies the unique (task, offset) slot of a legacy reminder.
func ReminderSlot(taskID uint, minutes int) string {
	return fmt.Sprintf("%d:%d", taskID, minutes)
}

// Reminder builds a legacy reminder minutes before due. ok is false when the
// fire instant is not after now.
func Reminder(taskID, userID uint, due time.Time, minutes int, ch model.Channel, now time.Time) (model.Trigger, bool) {
	fireAt := BeforeDue(due, minutes)
	if !fireAt.After(now) {
		return model.Trigger{}, false
	}
	slot := ReminderSlot(taskID, minutes)
	return model.Trigger{
		TaskID:        taskID,
		UserID:        userID,
		Kind:          model.KindReminder,
		TriggerType:   model.TypeBeforeDue,
		Channel:       ch,
		OffsetMinutes: minutes,
		FireAt:        fireAt.UTC(),
		State:         model.TriggerActive,
		ReminderSlot:  &slot,
	}, true
}

// Offset is a relative "N days/hours/minutes before due" position.
type Offset struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

func (o Offset) TotalMinutes() int {
	return o.Days*24*60 + o.Hours*60 + o.Minutes
}

func (o Offset) Negative() bool {
	return o.Days < 0 || o.Hours < 0 || o.Minutes < 0
}
