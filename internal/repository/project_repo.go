package repository

import (
	"context"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	ListOptions
	IsActive *bool
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	FirstOrCreateByName(ctx context.Context, name string, defaults model.Project) (*model.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]model.Project, int64, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	return GetDB(ctx, r.db).Create(project).Error
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := GetDB(ctx, r.db).Preload("User").Preload("Manager").First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) FirstOrCreateByName(ctx context.Context, name string, defaults model.Project) (*model.Project, error) {
	project := defaults
	project.Name = name
	if err := GetDB(ctx, r.db).Where("name = ?", name).FirstOrCreate(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) List(ctx context.Context, filter ProjectFilter) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	q := GetDB(ctx, r.db).Model(&model.Project{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = orderBy(q, filter.ListOptions, []string{"name", "created_at", "start_date", "end_date", "status"}, "created_at")
	if err := page(q, filter.ListOptions).Preload("User").Preload("Manager").Find(&projects).Error; err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *projectRepository) Update(ctx context.Context, project *model.Project) error {
	return GetDB(ctx, r.db).Omit("User", "Manager").Save(project).Error
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Project{}).Error
}
