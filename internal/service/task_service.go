package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	"task-reminder/internal/cadence"
	"task-reminder/internal/clock"
	"task-reminder/internal/model"
	"task-reminder/internal/recurrence"
	"task-reminder/internal/repository"
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title          string
	Description    string
	Category       string
	CategoryID     *uint
	AssigneeID     *uint
	DueDate        *time.Time
	IsRecurring    bool
	RecurrenceType recurrence.Period
}

// TaskPatch is a partial update. Nil fields are left unchanged.
type TaskPatch struct {
	Title          *string
	Description    *string
	Category       *string
	AssigneeID     *uint
	DueDate        *time.Time
	ClearDueDate   bool
	IsRecurring    *bool
	RecurrenceType *recurrence.Period
}

// CompleteResult carries the completed task and, for recurring tasks, its successor.
type CompleteResult struct {
	Task *model.Task
	Next *model.Task
}

// RecurringRun summarizes a batch recurrence catch-up.
type RecurringRun struct {
	Processed int          `json:"processed"`
	Generated int          `json:"generated"`
	Tasks     []model.Task `json:"tasks"`
}

// TaskService wraps task-related business logic and the lifecycle hooks that
// keep recurrence and triggers in step with task mutations.
type TaskService struct {
	taskRepo      TaskStore
	categoryRepo  *repository.CategoryRepository
	triggers      TriggerStore
	notifications NotificationStore
	clock         clock.Clock
}

func NewTaskService(taskRepo TaskStore, categoryRepo *repository.CategoryRepository, triggers TriggerStore, notifications NotificationStore, clk clock.Clock) *TaskService {
	return &TaskService{
		taskRepo:      taskRepo,
		categoryRepo:  categoryRepo,
		triggers:      triggers,
		notifications: notifications,
		clock:         clk,
	}
}

func validateRecurrence(isRecurring bool, period recurrence.Period) error {
	if isRecurring && period == "" {
		return validationf("recurrence type is required for recurring tasks")
	}
	if period != "" && !recurrence.IsValidPeriod(period) {
		return validationf("invalid recurrence type %q", period)
	}
	return nil
}

func (s *TaskService) resolveCategory(ctx context.Context, userID uint, name string, id *uint) (*uint, error) {
	if id != nil {
		category, err := s.categoryRepo.GetByID(ctx, userID, *id)
		if err != nil {
			return nil, notFound("category", err)
		}
		return &category.ID, nil
	}
	category, err := s.categoryRepo.GetOrCreate(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, nil
	}
	return &category.ID, nil
}

// CreateTask persists a task and its initial trigger batch.
func (s *TaskService) CreateTask(ctx context.Context, userID uint, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationf("title is required")
	}
	if err := validateRecurrence(input.IsRecurring, input.RecurrenceType); err != nil {
		return nil, err
	}

	categoryID, err := s.resolveCategory(ctx, userID, input.Category, input.CategoryID)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:      userID,
		CategoryID:  categoryID,
		AssigneeID:  input.AssigneeID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      model.TaskPending,
		DueDate:     input.DueDate,
		IsRecurring: input.IsRecurring,
	}
	if input.IsRecurring {
		task.RecurrenceType = input.RecurrenceType
		task.NextOccurrence = recurrence.NextOccurrence(input.DueDate, input.RecurrenceType)
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	if err := s.generateTriggers(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// generateTriggers stores the initial rule batch. Later due-date edits do not
// regenerate it.
func (s *TaskService) generateTriggers(ctx context.Context, task *model.Task) error {
	rules := cadence.DueDateRules(task.ID, task.UserID, task.DueDate, s.clock.Now())
	if err := s.triggers.CreateBatch(ctx, rules); err != nil {
		return fmt.Errorf("initial triggers for task %d: %w", task.ID, err)
	}
	return nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, userID, taskID)
	if err != nil {
		return nil, notFound("task", err)
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID uint, filter repository.TaskFilter) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, userID, filter)
}

func (s *TaskService) ListOverdue(ctx context.Context, userID uint) ([]model.Task, error) {
	return s.taskRepo.ListOverdue(ctx, userID, s.clock.Now())
}

func (s *TaskService) ListUpcoming(ctx context.Context, userID uint, days int) ([]model.Task, error) {
	if days <= 0 {
		days = 7
	}
	now := s.clock.Now()
	return s.taskRepo.ListUpcoming(ctx, userID, now, now.AddDate(0, 0, days))
}

// UpdateTask applies patch. When recurrence or due date change on a recurring
// task the next occurrence is recomputed from the effective values. Existing
// triggers are left as they are.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID uint, patch TaskPatch) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, validationf("title cannot be empty")
		}
		updates["title"] = title
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		categoryID, err := s.resolveCategory(ctx, userID, *patch.Category, nil)
		if err != nil {
			return nil, err
		}
		updates["category_id"] = categoryID
	}
	if patch.AssigneeID != nil {
		updates["assignee_id"] = patch.AssigneeID
	}

	dueDate := task.DueDate
	switch {
	case patch.ClearDueDate:
		dueDate = nil
		updates["due_date"] = nil
	case patch.DueDate != nil:
		dueDate = patch.DueDate
		updates["due_date"] = patch.DueDate
	}

	isRecurring := task.IsRecurring
	if patch.IsRecurring != nil {
		isRecurring = *patch.IsRecurring
		updates["is_recurring"] = isRecurring
	}
	period := task.RecurrenceType
	if patch.RecurrenceType != nil {
		period = *patch.RecurrenceType
		updates["recurrence_type"] = period
	}
	if !isRecurring && patch.RecurrenceType != nil && *patch.RecurrenceType != "" {
		return nil, validationf("recurrence_type %q requires is_recurring", *patch.RecurrenceType)
	}
	if err := validateRecurrence(isRecurring, period); err != nil {
		return nil, err
	}

	recurrenceTouched := patch.IsRecurring != nil || patch.RecurrenceType != nil || patch.DueDate != nil || patch.ClearDueDate
	switch {
	case !isRecurring && task.IsRecurring:
		updates["recurrence_type"] = recurrence.Period("")
		updates["next_occurrence"] = nil
	case recurrenceTouched && isRecurring && dueDate == nil:
		updates["next_occurrence"] = nil
	case recurrenceTouched && isRecurring:
		updates["next_occurrence"] = recurrence.NextOccurrence(dueDate, period)
	}

	if err := s.taskRepo.Update(ctx, task, updates); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, userID, taskID)
}

// CompleteTask marks the task completed and disables its triggers. A recurring
// task gets its successor in the same write. Only one of several concurrent
// calls wins; the rest see a validation error.
func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID uint) (*CompleteResult, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCompleted() {
		return nil, validationf("task #%d is already completed", taskID)
	}

	now := s.clock.Now()
	var next *model.Task
	if task.IsRecurring && task.RecurrenceType != "" {
		next = successorOf(task)
	}
	created, err := s.taskRepo.Complete(ctx, task, now, next, s.successorRules(now))
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyCompleted) {
			return nil, validationf("task #%d is already completed", taskID)
		}
		return nil, err
	}

	result := &CompleteResult{}
	if created {
		logSuccessor(task, next)
		result.Next = next
	}
	s.notifyCompleted(ctx, task, now)

	completed, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	result.Task = completed
	return result, nil
}

// successorOf builds the next occurrence of a recurring task. It returns nil
// when the task has no due date to advance from.
func successorOf(task *model.Task) *model.Task {
	nextDue := recurrence.NextOccurrence(task.DueDate, task.RecurrenceType)
	if nextDue == nil {
		return nil
	}
	return &model.Task{
		UserID:         task.UserID,
		CategoryID:     task.CategoryID,
		AssigneeID:     task.AssigneeID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         model.TaskPending,
		DueDate:        nextDue,
		IsRecurring:    true,
		RecurrenceType: task.RecurrenceType,
		NextOccurrence: recurrence.NextOccurrence(nextDue, task.RecurrenceType),
	}
}

func (s *TaskService) successorRules(now time.Time) repository.SuccessorRules {
	return func(next *model.Task) []model.Trigger {
		return cadence.DueDateRules(next.ID, next.UserID, next.DueDate, now)
	}
}

func logSuccessor(parent, next *model.Task) {
	log.Printf("[info] task %d: next occurrence %d due %s", parent.ID, next.ID, next.DueDate.Format(time.RFC3339))
}

func (s *TaskService) notifyCompleted(ctx context.Context, task *model.Task, at time.Time) {
	title := task.Title
	n := &model.Notification{
		UserID:   task.UserID,
		TaskID:   task.ID,
		Channel:  model.ChannelInApp,
		Title:    "Task completed",
		Message:  fmt.Sprintf("✅ Task %q has been marked as completed", task.Title),
		Status:   model.NotificationSent,
		SentAt:   &at,
		DedupKey: fmt.Sprintf("completed:%d", task.ID),
		Metadata: datatypes.NewJSONType(model.NotificationMeta{
			TaskTitle:   &title,
			DueDate:     task.DueDate,
			CompletedAt: &at,
		}),
	}
	if _, err := s.notifications.Create(ctx, n); err != nil {
		log.Printf("[warn] completion notification for task %d: %v", task.ID, err)
	}
}

// MarkPending reopens a task. Disabled triggers stay disabled.
func (s *TaskService) MarkPending(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, task, map[string]interface{}{
		"status":       model.TaskPending,
		"completed_at": nil,
	}); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, userID, taskID)
}

// DeleteTask removes a task, disables its triggers and drops its notifications.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID uint) error {
	if err := s.taskRepo.Delete(ctx, userID, taskID); err != nil {
		return notFound("task", err)
	}
	return nil
}

// StopRecurrence clears the recurrence settings. Triggers are not touched.
func (s *TaskService) StopRecurrence(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsRecurring {
		return nil, ErrNotRecurring
	}
	if err := s.taskRepo.Update(ctx, task, map[string]interface{}{
		"is_recurring":    false,
		"recurrence_type": recurrence.Period(""),
		"next_occurrence": nil,
	}); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, userID, taskID)
}

// ProcessRecurringTasks spawns successors for completed recurring tasks whose
// next occurrence arrived without one. A failing task is logged and skipped.
func (s *TaskService) ProcessRecurringTasks(ctx context.Context) (*RecurringRun, error) {
	due, err := s.taskRepo.ListDueForRecurrence(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("find tasks due for recurrence: %w", err)
	}

	run := &RecurringRun{Processed: len(due), Tasks: []model.Task{}}
	rules := s.successorRules(s.clock.Now())
	for i := range due {
		task := &due[i]
		next := successorOf(task)
		if next == nil {
			continue
		}
		created, err := s.taskRepo.CreateSuccessor(ctx, task.ID, next, rules)
		if err != nil {
			log.Printf("[error] recurrence catch-up task %d: %v", task.ID, err)
			continue
		}
		if created {
			logSuccessor(task, next)
			run.Generated++
			run.Tasks = append(run.Tasks, *next)
		}
	}
	return run, nil
}
