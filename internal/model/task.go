package model

import (
	"time"

	"gorm.io/gorm"

	"task-reminder/internal/recurrence"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "Pending"
	TaskCompleted TaskStatus = "Completed"
)

// Task represents a single item in the planner. A completed recurring task is never
// reopened: completion spawns a successor that points back through ParentTaskID.
type Task struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	UserID         uint              `gorm:"index" json:"user_id"`
	CategoryID     *uint             `gorm:"index" json:"category_id,omitempty"`
	AssigneeID     *uint             `gorm:"index" json:"assignee_id,omitempty"`
	ParentTaskID   *uint             `gorm:"index" json:"parent_task_id,omitempty"`
	Title          string            `gorm:"not null" json:"title"`
	Description    string            `json:"description,omitempty"`
	Status         TaskStatus        `gorm:"index;default:Pending" json:"status"`
	DueDate        *time.Time        `gorm:"index" json:"due_date,omitempty"`
	IsRecurring    bool              `gorm:"default:false" json:"is_recurring"`
	RecurrenceType recurrence.Period `json:"recurrence_type,omitempty"`
	NextOccurrence *time.Time        `gorm:"index" json:"next_occurrence,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	DeletedAt      gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (t *Task) IsCompleted() bool {
	return t.Status == TaskCompleted
}
