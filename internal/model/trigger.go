package model

import (
	"time"

	"gorm.io/datatypes"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in-app"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

type TriggerState string

const (
	TriggerActive    TriggerState = "active"
	TriggerTriggered TriggerState = "triggered"
	TriggerDisabled  TriggerState = "disabled"
)

// TriggerKind separates auto-generated notification rules from the fixed-minute reminders.
type TriggerKind string

const (
	KindRule     TriggerKind = "rule"
	KindReminder TriggerKind = "reminder"
)

type TriggerType string

const (
	TypeBeforeDue TriggerType = "before_due_date"
	TypeOnDue     TriggerType = "on_due_date"
	TypeAtTime    TriggerType = "at_time"
)

// TriggerSnapshot keeps what the user saw when the trigger fired, so history
// still renders after the task is edited or deleted.
type TriggerSnapshot struct {
	TaskTitle     *string    `json:"task_title"`
	DueDate       *time.Time `json:"due_date"`
	OffsetMinutes int        `json:"offset_minutes"`
	SentAt        time.Time  `json:"sent_at"`
}

// Trigger is one scheduled firing for a task.
type Trigger struct {
	ID            uint                                `gorm:"primaryKey" json:"id"`
	TaskID        uint                                `gorm:"index;not null" json:"task_id"`
	UserID        uint                                `gorm:"index;not null" json:"user_id"`
	Kind          TriggerKind                         `gorm:"default:rule" json:"kind"`
	TriggerType   TriggerType                         `json:"trigger_type"`
	Channel       Channel                             `gorm:"default:in-app" json:"channel"`
	OffsetMinutes int                                 `json:"offset_minutes"`
	FireAt        time.Time                           `gorm:"index:idx_trigger_due,priority:3;not null" json:"fire_at"`
	State         TriggerState                        `gorm:"index:idx_trigger_due,priority:1;default:active" json:"state"`
	IsTriggered   bool                                `gorm:"index:idx_trigger_due,priority:2;default:false" json:"is_triggered"`
	FiredAt       *time.Time                          `json:"fired_at,omitempty"`
	Metadata      datatypes.JSONType[TriggerSnapshot] `json:"metadata"`
	ReminderSlot  *string                             `gorm:"uniqueIndex" json:"-"`
	History       []TriggerHistory                    `gorm:"foreignKey:TriggerID" json:"history,omitempty"`
	CreatedAt     time.Time                           `json:"created_at"`
	UpdatedAt     time.Time                           `json:"updated_at"`
}

// TriggerHistory is an append-only audit entry for a trigger.
type TriggerHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TriggerID   uint      `gorm:"index;not null" json:"trigger_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
}
