package repository

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-reminder/internal/model"
)

// CategoryCount is a category together with how many pending tasks it holds.
type CategoryCount struct {
	model.Category
	Pending int64 `json:"pending"`
}

// CategoryRepository manages task categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetOrCreate returns nil for a blank name. Two callers racing on the same
// name both end up with the single stored row.
func (r *CategoryRepository) GetOrCreate(ctx context.Context, userID uint, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	db := r.db.WithContext(ctx)
	category := model.Category{UserID: userID, Name: name}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	if category.ID != 0 {
		return &category, nil
	}

	var existing model.Category
	if err := db.Where("user_id = ? AND name = ?", userID, name).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &existing, nil
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID uint) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListWithCounts lists the user's categories with their pending task counts,
// empty categories included.
func (r *CategoryRepository) ListWithCounts(ctx context.Context, userID uint) ([]CategoryCount, error) {
	categories, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		CategoryID uint
		Pending    int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("category_id, COUNT(*) AS pending").
		Where("user_id = ? AND status = ? AND category_id IS NOT NULL", userID, model.TaskPending).
		Group("category_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count tasks per category: %w", err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.Pending
	}

	out := make([]CategoryCount, 0, len(categories))
	for _, cat := range categories {
		out = append(out, CategoryCount{Category: cat, Pending: counts[cat.ID]})
	}
	return out, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, userID, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}
