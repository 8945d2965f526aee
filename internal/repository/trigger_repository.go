package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"task-reminder/internal/model"
)

// ErrAlreadyTriggered is returned by MarkTriggered when another run claimed the
// trigger first or it is no longer active.
var ErrAlreadyTriggered = errors.New("trigger already triggered or inactive")

// TriggerFilter narrows ListByUser. Zero values match everything.
type TriggerFilter struct {
	State   model.TriggerState
	Channel model.Channel
	Kind    model.TriggerKind
}

// TriggerRepository persists reminders and notification rules.
type TriggerRepository struct {
	db *gorm.DB
}

func NewTriggerRepository(db *gorm.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

func (r *TriggerRepository) Create(ctx context.Context, trigger *model.Trigger) error {
	trigger.FireAt = trigger.FireAt.UTC()
	if err := r.db.WithContext(ctx).Create(trigger).Error; err != nil {
		return fmt.Errorf("create trigger: %w", err)
	}
	return nil
}

// CreateBatch persists triggers in a single transaction.
func (r *TriggerRepository) CreateBatch(ctx context.Context, triggers []model.Trigger) error {
	if len(triggers) == 0 {
		return nil
	}
	for i := range triggers {
		triggers[i].FireAt = triggers[i].FireAt.UTC()
	}
	if err := r.db.WithContext(ctx).Create(&triggers).Error; err != nil {
		return fmt.Errorf("create triggers: %w", err)
	}
	return nil
}

func (r *TriggerRepository) FindByID(ctx context.Context, id uint) (*model.Trigger, error) {
	var trigger model.Trigger
	if err := r.db.WithContext(ctx).Preload("History", func(db *gorm.DB) *gorm.DB {
		return db.Order("triggered_at ASC, id ASC")
	}).First(&trigger, id).Error; err != nil {
		return nil, err
	}
	return &trigger, nil
}

// FindBySlot looks up a legacy reminder by its (task, minutes) slot.
func (r *TriggerRepository) FindBySlot(ctx context.Context, slot string) (*model.Trigger, error) {
	var trigger model.Trigger
	if err := r.db.WithContext(ctx).Where("reminder_slot = ?", slot).First(&trigger).Error; err != nil {
		return nil, err
	}
	return &trigger, nil
}

func (r *TriggerRepository) ListByTask(ctx context.Context, taskID uint) ([]model.Trigger, error) {
	var triggers []model.Trigger
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("fire_at ASC, id ASC").Find(&triggers).Error; err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *TriggerRepository) ListByUser(ctx context.Context, userID uint, filter TriggerFilter) ([]model.Trigger, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.Channel != "" {
		q = q.Where("channel = ?", filter.Channel)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	var triggers []model.Trigger
	if err := q.Order("fire_at ASC, id ASC").Find(&triggers).Error; err != nil {
		return nil, err
	}
	return triggers, nil
}

// ListUpcoming returns active, unfired triggers of a user firing within [from, to].
func (r *TriggerRepository) ListUpcoming(ctx context.Context, userID uint, from, to time.Time) ([]model.Trigger, error) {
	var triggers []model.Trigger
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND state = ? AND is_triggered = ? AND fire_at >= ? AND fire_at <= ?",
			userID, model.TriggerActive, false, from.UTC(), to.UTC()).
		Order("fire_at ASC, id ASC").
		Find(&triggers).Error; err != nil {
		return nil, err
	}
	return triggers, nil
}

// FindDue returns every active, unfired trigger whose fire instant is at or before
// now, earliest first.
func (r *TriggerRepository) FindDue(ctx context.Context, now time.Time) ([]model.Trigger, error) {
	var triggers []model.Trigger
	if err := r.db.WithContext(ctx).
		Where("state = ? AND is_triggered = ? AND fire_at <= ?", model.TriggerActive, false, now.UTC()).
		Order("fire_at ASC, id ASC").
		Find(&triggers).Error; err != nil {
		return nil, fmt.Errorf("find due triggers: %w", err)
	}
	return triggers, nil
}

// MarkTriggered claims an active trigger with a single conditional update, so two
// concurrent scans cannot both fire it.
func (r *TriggerRepository) MarkTriggered(ctx context.Context, id uint, firedAt time.Time, snapshot model.TriggerSnapshot) error {
	firedAt = firedAt.UTC()
	res := r.db.WithContext(ctx).Model(&model.Trigger{}).
		Where("id = ? AND state = ? AND is_triggered = ?", id, model.TriggerActive, false).
		Updates(map[string]interface{}{
			"state":        model.TriggerTriggered,
			"is_triggered": true,
			"fired_at":     &firedAt,
			"metadata":     datatypes.NewJSONType(snapshot),
		})
	if res.Error != nil {
		return fmt.Errorf("mark trigger %d triggered: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyTriggered
	}
	return nil
}

// AppendHistory adds an audit entry. History is never truncated here.
func (r *TriggerRepository) AppendHistory(ctx context.Context, id uint, entry model.TriggerHistory) error {
	entry.ID = 0
	entry.TriggerID = id
	entry.TriggeredAt = entry.TriggeredAt.UTC()
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("append trigger history: %w", err)
	}
	return nil
}

// Update applies column updates to a trigger.
func (r *TriggerRepository) Update(ctx context.Context, trigger *model.Trigger, updates map[string]interface{}) error {
	if t, ok := updates["fire_at"].(time.Time); ok {
		updates["fire_at"] = t.UTC()
	}
	if err := r.db.WithContext(ctx).Model(trigger).Updates(updates).Error; err != nil {
		return fmt.Errorf("update trigger: %w", err)
	}
	return nil
}

// DisableAllForTask moves every active trigger of a task to disabled.
func (r *TriggerRepository) DisableAllForTask(ctx context.Context, taskID uint) (int64, error) {
	return disableTriggers(r.db.WithContext(ctx), taskID)
}

func disableTriggers(db *gorm.DB, taskID uint) (int64, error) {
	res := db.Model(&model.Trigger{}).
		Where("task_id = ? AND state = ?", taskID, model.TriggerActive).
		Update("state", model.TriggerDisabled)
	if res.Error != nil {
		return 0, fmt.Errorf("disable triggers for task %d: %w", taskID, res.Error)
	}
	return res.RowsAffected, nil
}

// Snooze disables an active or triggered trigger. The fired flag is kept.
func (r *TriggerRepository) Snooze(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Trigger{}).
		Where("id = ? AND state IN ?", id, []model.TriggerState{model.TriggerActive, model.TriggerTriggered}).
		Update("state", model.TriggerDisabled).Error; err != nil {
		return fmt.Errorf("snooze trigger: %w", err)
	}
	return nil
}

// Unsnooze re-arms a trigger without touching its fire instant.
func (r *TriggerRepository) Unsnooze(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Trigger{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":        model.TriggerActive,
			"is_triggered": false,
		}).Error; err != nil {
		return fmt.Errorf("unsnooze trigger: %w", err)
	}
	return nil
}

// Delete removes a trigger and its history.
func (r *TriggerRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("trigger_id = ?", id).Delete(&model.TriggerHistory{}).Error; err != nil {
			return fmt.Errorf("delete trigger history: %w", err)
		}
		res := tx.Delete(&model.Trigger{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete trigger: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// DeleteTriggered removes the fired triggers of a user, returning how many went.
func (r *TriggerRepository) DeleteTriggered(ctx context.Context, userID uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fired := tx.Model(&model.Trigger{}).Select("id").Where("user_id = ? AND is_triggered = ?", userID, true)
		if err := tx.Where("trigger_id IN (?)", fired).Delete(&model.TriggerHistory{}).Error; err != nil {
			return fmt.Errorf("delete trigger history: %w", err)
		}
		res := tx.Where("user_id = ? AND is_triggered = ?", userID, true).Delete(&model.Trigger{})
		if res.Error != nil {
			return fmt.Errorf("delete triggered: %w", res.Error)
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
