package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-reminder/internal/model"
)

// NotificationFilter narrows ListByUser. Nil or zero values match everything.
type NotificationFilter struct {
	IsRead  *bool
	Status  model.NotificationStatus
	Channel model.Channel
}

// NotificationRepository stores delivery records.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts n unless a record with the same DedupKey exists. created is
// false for the duplicate case.
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) (created bool, err error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("create notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordDelivery stores the outcome of a dispatch attempt.
func (r *NotificationRepository) RecordDelivery(ctx context.Context, id uint, status model.NotificationStatus, at time.Time, reason string) error {
	updates := map[string]interface{}{
		"status":        status,
		"error_message": reason,
	}
	if status == model.NotificationSent {
		sentAt := at.UTC()
		updates["sent_at"] = &sentAt
	}
	if err := r.db.WithContext(ctx).Model(&model.Notification{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, userID, id uint) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint, filter NotificationFilter) ([]model.Notification, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.IsRead != nil {
		q = q.Where("is_read = ?", *filter.IsRead)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Channel != "" {
		q = q.Where("channel = ?", filter.Channel)
	}
	var notifications []model.Notification
	if err := q.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id uint, at time.Time) error {
	readAt := at.UTC()
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(map[string]interface{}{"is_read": true, "read_at": &readAt})
	if res.Error != nil {
		return fmt.Errorf("mark read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	readAt := at.UTC()
	res := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": &readAt})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&model.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
