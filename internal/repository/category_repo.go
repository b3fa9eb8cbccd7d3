package repository

import (
	"context"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryFilter struct {
	ListOptions
	IsActive *bool
}

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	GetByName(ctx context.Context, name string) (*model.Category, error)
	FirstOrCreateByName(ctx context.Context, name string) (*model.Category, error)
	List(ctx context.Context, filter CategoryFilter) ([]model.Category, int64, error)
	Update(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Create(category).Error
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := GetDB(ctx, r.db).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*model.Category, error) {
	var category model.Category
	if err := GetDB(ctx, r.db).First(&category, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FirstOrCreateByName(ctx context.Context, name string) (*model.Category, error) {
	category := model.Category{Name: name, Color: model.DefaultCategoryColor, IsActive: true}
	if err := GetDB(ctx, r.db).Where("name = ?", name).FirstOrCreate(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, filter CategoryFilter) ([]model.Category, int64, error) {
	var categories []model.Category
	var total int64

	q := GetDB(ctx, r.db).Model(&model.Category{})
	if filter.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", likePattern(filter.Search))
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = orderBy(q, filter.ListOptions, []string{"name", "created_at"}, "name")
	if err := page(q, filter.ListOptions).Find(&categories).Error; err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Save(category).Error
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Category{}).Error
}
