package model

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

type NotificationMeta struct {
	TaskTitle     *string    `json:"task_title,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	OffsetMinutes *int       `json:"offset_minutes,omitempty"`
	TriggerType   string     `json:"trigger_type,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Notification is the delivery record produced when a trigger fires. DedupKey
// makes a firing event produce at most one record.
type Notification struct {
	ID           uint                                 `gorm:"primaryKey" json:"id"`
	UserID       uint                                 `gorm:"index:idx_notification_user_created,priority:1;not null" json:"user_id"`
	TaskID       uint                                 `gorm:"index" json:"task_id"`
	TriggerID    *uint                                `gorm:"index" json:"trigger_id,omitempty"`
	Channel      Channel                              `json:"channel"`
	Title        string                               `json:"title"`
	Message      string                               `gorm:"not null" json:"message"`
	Status       NotificationStatus                   `gorm:"index;default:pending" json:"status"`
	IsRead       bool                                 `gorm:"index;default:false" json:"is_read"`
	ReadAt       *time.Time                           `json:"read_at,omitempty"`
	SentAt       *time.Time                           `json:"sent_at,omitempty"`
	ErrorMessage string                               `json:"error_message,omitempty"`
	Metadata     datatypes.JSONType[NotificationMeta] `json:"metadata"`
	DedupKey     string                               `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt    time.Time                            `gorm:"index:idx_notification_user_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time                            `json:"updated_at"`
}
