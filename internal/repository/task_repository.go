package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"task-reminder/internal/model"
)

// ErrAlreadyCompleted is returned by Complete when the task is no longer pending.
var ErrAlreadyCompleted = errors.New("task already completed")

// SuccessorRules builds the trigger batch for a freshly stored successor.
type SuccessorRules func(next *model.Task) []model.Trigger

// TaskFilter narrows ListByUser. Zero values match everything.
type TaskFilter struct {
	Status     model.TaskStatus
	CategoryID *uint
	Recurring  *bool
	Search     string
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	normalizeTaskTimes(task)
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Get loads a task regardless of owner. Soft-deleted tasks are not found.
func (r *TaskRepository) Get(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID uint, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Recurring != nil {
		q = q.Where("is_recurring = ?", *filter.Recurring)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var tasks []model.Task
	if err := q.Order("due_date NULLS LAST, created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOverdue returns pending tasks whose due date passed.
func (r *TaskRepository) ListOverdue(ctx context.Context, userID uint, now time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND due_date < ?", userID, model.TaskPending, now.UTC()).
		Order("due_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListUpcoming returns pending tasks due within [from, to].
func (r *TaskRepository) ListUpcoming(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND due_date >= ? AND due_date <= ?", userID, model.TaskPending, from.UTC(), to.UTC()).
		Order("due_date ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListDueForRecurrence returns completed recurring tasks whose next occurrence has
// arrived and that have not spawned a successor yet.
func (r *TaskRepository) ListDueForRecurrence(ctx context.Context, now time.Time) ([]model.Task, error) {
	var tasks []model.Task
	successors := r.db.Unscoped().Model(&model.Task{}).Select("parent_task_id").Where("parent_task_id IS NOT NULL")
	if err := r.db.WithContext(ctx).
		Where("is_recurring = ? AND status = ? AND next_occurrence <= ?", true, model.TaskCompleted, now.UTC()).
		Where("id NOT IN (?)", successors).
		Order("next_occurrence ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update applies column updates to task and reloads nothing; the caller's struct
// reflects the new values.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	for k, v := range updates {
		if t, ok := v.(*time.Time); ok && t != nil {
			utc := t.UTC()
			updates[k] = &utc
		}
	}
	if err := r.db.WithContext(ctx).Model(task).Updates(updates).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// Complete claims a pending task as Completed and disables its active triggers.
// When next is non-nil and the task has no successor yet, next and the triggers
// rules builds for it are stored in the same transaction. The returned flag
// reports whether next was stored. A task that is not pending yields
// ErrAlreadyCompleted and nothing is written.
func (r *TaskRepository) Complete(ctx context.Context, task *model.Task, completedAt time.Time, next *model.Task, rules SuccessorRules) (bool, error) {
	completedAt = completedAt.UTC()
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("id = ? AND status = ?", task.ID, model.TaskPending).
			Updates(map[string]interface{}{
				"status":       model.TaskCompleted,
				"completed_at": &completedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("complete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyCompleted
		}
		if _, err := disableTriggers(tx, task.ID); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		var err error
		created, err = createSuccessor(tx, task.ID, next, rules)
		return err
	})
	if err != nil {
		return false, err
	}
	task.Status = model.TaskCompleted
	task.CompletedAt = &completedAt
	return created, nil
}

// CreateSuccessor stores next as the successor of parentID together with its
// triggers, unless the parent already has one.
func (r *TaskRepository) CreateSuccessor(ctx context.Context, parentID uint, next *model.Task, rules SuccessorRules) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Touching the parent row serializes concurrent successor inserts.
		res := tx.Model(&model.Task{}).Where("id = ?", parentID).Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return fmt.Errorf("lock task %d: %w", parentID, res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var err error
		created, err = createSuccessor(tx, parentID, next, rules)
		return err
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func createSuccessor(tx *gorm.DB, parentID uint, next *model.Task, rules SuccessorRules) (bool, error) {
	var count int64
	if err := tx.Unscoped().Model(&model.Task{}).Where("parent_task_id = ?", parentID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count successors: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	next.ParentTaskID = &parentID
	normalizeTaskTimes(next)
	if err := tx.Create(next).Error; err != nil {
		return false, fmt.Errorf("create successor of task %d: %w", parentID, err)
	}
	if rules == nil {
		return true, nil
	}
	triggers := rules(next)
	if len(triggers) == 0 {
		return true, nil
	}
	for i := range triggers {
		triggers[i].FireAt = triggers[i].FireAt.UTC()
	}
	if err := tx.Create(&triggers).Error; err != nil {
		return false, fmt.Errorf("create triggers for task %d: %w", next.ID, err)
	}
	return true, nil
}

// Delete soft-deletes a task, disables its triggers and removes its notifications.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := disableTriggers(tx, taskID); err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Notification{}).Error; err != nil {
			return fmt.Errorf("delete task notifications: %w", err)
		}
		res := tx.Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func normalizeTaskTimes(task *model.Task) {
	if task.DueDate != nil {
		due := task.DueDate.UTC()
		task.DueDate = &due
	}
	if task.NextOccurrence != nil {
		next := task.NextOccurrence.UTC()
		task.NextOccurrence = &next
	}
}
