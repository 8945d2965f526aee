package model

import "time"

// User owns tasks and receives notifications. TelegramID is zero for users that
// never talked to the bot.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TelegramID   int64     `gorm:"index" json:"telegram_id,omitempty"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Username     string    `gorm:"index" json:"username"`
	Email        string    `json:"email,omitempty"`
	PushEnabled  bool      `json:"push_enabled"`
	InAppEnabled bool      `json:"in_app_enabled"`
	EmailEnabled bool      `json:"email_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChannelEnabled reports whether the user accepts deliveries on ch.
func (u User) ChannelEnabled(ch Channel) bool {
	switch ch {
	case ChannelPush:
		return u.PushEnabled
	case ChannelInApp:
		return u.InAppEnabled
	case ChannelEmail:
		return u.EmailEnabled
	default:
		return true
	}
}
