package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"task-reminder/internal/cadence"
	"task-reminder/internal/clock"
	"task-reminder/internal/model"
	"task-reminder/internal/repository"
)

// RuleInput describes an explicit notification rule. Exactly one of At and
// Before must be set.
type RuleInput struct {
	Channel model.Channel
	At      *time.Time
	Before  *cadence.Offset
}

// ReminderBatch reports which legacy reminder slots were created or skipped.
type ReminderBatch struct {
	Created []model.Trigger `json:"created"`
	Skipped []int           `json:"skipped"`
}

// ReminderService manages reminders and notification rules on behalf of their owner.
type ReminderService struct {
	tasks    TaskStore
	triggers TriggerStore
	clock    clock.Clock
}

func NewReminderService(tasks TaskStore, triggers TriggerStore, clk clock.Clock) *ReminderService {
	return &ReminderService{tasks: tasks, triggers: triggers, clock: clk}
}

func (s *ReminderService) ownedTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, notFound("task", err)
	}
	return task, nil
}

// Get returns a trigger owned by userID.
func (s *ReminderService) Get(ctx context.Context, userID, triggerID uint) (*model.Trigger, error) {
	trigger, err := s.triggers.FindByID(ctx, triggerID)
	if err != nil {
		return nil, notFound("trigger", err)
	}
	if trigger.UserID != userID {
		return nil, fmt.Errorf("trigger: %w", ErrNotFound)
	}
	return trigger, nil
}

func defaultChannel(ch model.Channel) (model.Channel, error) {
	if ch == "" {
		return model.ChannelPush, nil
	}
	if !ch.Valid() {
		return "", validationf("invalid channel %q", ch)
	}
	return ch, nil
}

// CreateReminder adds a legacy reminder minutes before the task's due date.
func (s *ReminderService) CreateReminder(ctx context.Context, userID, taskID uint, minutes int, ch model.Channel) (*model.Trigger, error) {
	if minutes <= 0 {
		return nil, validationf("minutes before due must be positive")
	}
	ch, err := defaultChannel(ch)
	if err != nil {
		return nil, err
	}
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.DueDate == nil {
		return nil, validationf("task #%d has no due date", taskID)
	}

	if _, err := s.triggers.FindBySlot(ctx, cadence.ReminderSlot(taskID, minutes)); err == nil {
		return nil, ErrReminderExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find reminder slot: %w", err)
	}

	trigger, ok := cadence.Reminder(task.ID, userID, *task.DueDate, minutes, ch, s.clock.Now())
	if !ok {
		return nil, ErrReminderInPast
	}
	if err := s.triggers.Create(ctx, &trigger); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrReminderExists
		}
		return nil, err
	}
	return &trigger, nil
}

// CreateMultipleReminders creates the legacy cadence for a task. Occupied and
// past slots are skipped.
func (s *ReminderService) CreateMultipleReminders(ctx context.Context, userID, taskID uint, offsets []int, ch model.Channel) (*ReminderBatch, error) {
	if len(offsets) == 0 {
		offsets = cadence.LegacyOffsets
	}
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return nil, err
	}

	batch := &ReminderBatch{Created: []model.Trigger{}, Skipped: []int{}}
	for _, minutes := range offsets {
		trigger, err := s.CreateReminder(ctx, userID, taskID, minutes, ch)
		switch {
		case errors.Is(err, ErrReminderExists), errors.Is(err, ErrReminderInPast):
			batch.Skipped = append(batch.Skipped, minutes)
		case err != nil:
			return nil, err
		default:
			batch.Created = append(batch.Created, *trigger)
		}
	}
	return batch, nil
}

// CreateRule adds an explicit rule at an absolute instant or relative to the
// due date. The fire instant may not be after the due date.
func (s *ReminderService) CreateRule(ctx context.Context, userID, taskID uint, input RuleInput) (*model.Trigger, error) {
	ch, err := defaultChannel(input.Channel)
	if err != nil {
		return nil, err
	}
	if (input.At == nil) == (input.Before == nil) {
		return nil, validationf("exactly one of an absolute time or an offset before due is required")
	}
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	trigger := model.Trigger{
		TaskID:  task.ID,
		UserID:  userID,
		Kind:    model.KindRule,
		Channel: ch,
		State:   model.TriggerActive,
	}
	if input.Before != nil {
		if task.DueDate == nil {
			return nil, validationf("task #%d has no due date to offset from", taskID)
		}
		if input.Before.Negative() {
			return nil, validationf("offset before due cannot be negative")
		}
		minutes := input.Before.TotalMinutes()
		trigger.OffsetMinutes = minutes
		trigger.FireAt = cadence.BeforeDue(*task.DueDate, minutes)
		trigger.TriggerType = model.TypeBeforeDue
		if minutes == 0 {
			trigger.TriggerType = model.TypeOnDue
		}
	} else {
		trigger.FireAt = *input.At
		trigger.TriggerType = model.TypeAtTime
		if task.DueDate != nil {
			if input.At.After(*task.DueDate) {
				return nil, validationf("notification time must be on or before the due date")
			}
			trigger.OffsetMinutes = int(task.DueDate.Sub(*input.At) / time.Minute)
		}
	}

	if err := s.triggers.Create(ctx, &trigger); err != nil {
		return nil, err
	}
	return &trigger, nil
}

// UpdateReminderOffset moves a reminder to a new offset from the live due date.
func (s *ReminderService) UpdateReminderOffset(ctx context.Context, userID, triggerID uint, minutes int) (*model.Trigger, error) {
	if minutes < 0 {
		return nil, validationf("minutes before due cannot be negative")
	}
	trigger, err := s.Get(ctx, userID, triggerID)
	if err != nil {
		return nil, err
	}
	task, err := s.tasks.Get(ctx, trigger.TaskID)
	if err != nil {
		return nil, notFound("task", err)
	}
	if task.DueDate == nil {
		return nil, validationf("task #%d has no due date", task.ID)
	}

	updates := map[string]interface{}{
		"offset_minutes": minutes,
		"fire_at":        cadence.BeforeDue(*task.DueDate, minutes).UTC(),
	}
	if trigger.Kind == model.KindReminder {
		updates["reminder_slot"] = cadence.ReminderSlot(task.ID, minutes)
	}
	if err := s.triggers.Update(ctx, trigger, updates); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrReminderExists
		}
		return nil, err
	}
	return s.Get(ctx, userID, triggerID)
}

func (s *ReminderService) ListForTask(ctx context.Context, userID, taskID uint) ([]model.Trigger, error) {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.triggers.ListByTask(ctx, taskID)
}

func (s *ReminderService) ListForUser(ctx context.Context, userID uint, filter repository.TriggerFilter) ([]model.Trigger, error) {
	return s.triggers.ListByUser(ctx, userID, filter)
}

func (s *ReminderService) ListActive(ctx context.Context, userID uint) ([]model.Trigger, error) {
	return s.triggers.ListByUser(ctx, userID, repository.TriggerFilter{State: model.TriggerActive})
}

// ListHistory returns the triggers that already fired.
func (s *ReminderService) ListHistory(ctx context.Context, userID uint) ([]model.Trigger, error) {
	return s.triggers.ListByUser(ctx, userID, repository.TriggerFilter{State: model.TriggerTriggered})
}

// Upcoming lists active triggers firing within the next days.
func (s *ReminderService) Upcoming(ctx context.Context, userID uint, days int) ([]model.Trigger, error) {
	if days <= 0 {
		days = 7
	}
	now := s.clock.Now()
	return s.triggers.ListUpcoming(ctx, userID, now, now.AddDate(0, 0, days))
}

// DetailedHistory returns a trigger with its firing history.
func (s *ReminderService) DetailedHistory(ctx context.Context, userID, triggerID uint) (*model.Trigger, error) {
	return s.Get(ctx, userID, triggerID)
}

// ClearHistory deletes every fired trigger of the user.
func (s *ReminderService) ClearHistory(ctx context.Context, userID uint) (int64, error) {
	return s.triggers.DeleteTriggered(ctx, userID)
}

func (s *ReminderService) Snooze(ctx context.Context, userID, triggerID uint) (*model.Trigger, error) {
	if _, err := s.Get(ctx, userID, triggerID); err != nil {
		return nil, err
	}
	if err := s.triggers.Snooze(ctx, triggerID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, triggerID)
}

// Unsnooze re-arms a trigger. A fire instant already in the past fires on the next tick.
func (s *ReminderService) Unsnooze(ctx context.Context, userID, triggerID uint) (*model.Trigger, error) {
	if _, err := s.Get(ctx, userID, triggerID); err != nil {
		return nil, err
	}
	if err := s.triggers.Unsnooze(ctx, triggerID); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, triggerID)
}

func (s *ReminderService) Delete(ctx context.Context, userID, triggerID uint) error {
	if _, err := s.Get(ctx, userID, triggerID); err != nil {
		return err
	}
	if err := s.triggers.Delete(ctx, triggerID); err != nil {
		return notFound("trigger", err)
	}
	return nil
}
