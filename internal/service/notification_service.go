package service

import (
	"context"

	"task-reminder/internal/clock"
	"task-reminder/internal/model"
	"task-reminder/internal/repository"
)

// Preferences toggles delivery channels. Nil fields stay unchanged.
type Preferences struct {
	Push  *bool `json:"push_enabled"`
	InApp *bool `json:"in_app_enabled"`
	Email *bool `json:"email_enabled"`
}

// NotificationService exposes a user's delivery records and channel preferences.
type NotificationService struct {
	notifications NotificationStore
	users         UserStore
	clock         clock.Clock
}

func NewNotificationService(notifications NotificationStore, users UserStore, clk clock.Clock) *NotificationService {
	return &NotificationService{notifications: notifications, users: users, clock: clk}
}

func (s *NotificationService) List(ctx context.Context, userID uint, filter repository.NotificationFilter) ([]model.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, filter)
}

func (s *NotificationService) Get(ctx context.Context, userID, id uint) (*model.Notification, error) {
	n, err := s.notifications.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound("notification", err)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (*model.Notification, error) {
	if err := s.notifications.MarkRead(ctx, userID, id, s.clock.Now()); err != nil {
		return nil, notFound("notification", err)
	}
	return s.Get(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.notifications.MarkAllRead(ctx, userID, s.clock.Now())
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	if err := s.notifications.Delete(ctx, userID, id); err != nil {
		return notFound("notification", err)
	}
	return nil
}

func (s *NotificationService) User(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("user", err)
	}
	return user, nil
}

// UpdatePreferences applies prefs and returns the updated user.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID uint, prefs Preferences) (*model.User, error) {
	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePreferences(ctx, user, prefs.Push, prefs.InApp, prefs.Email); err != nil {
		return nil, err
	}
	return s.User(ctx, userID)
}
