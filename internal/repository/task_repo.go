package repository

import (
	"context"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskFilter narrows a task listing. UserID and AssigneeID are OR-ed together.
type TaskFilter struct {
	ListOptions
	UserID      *uuid.UUID
	AssigneeID  *uuid.UUID
	ProjectID   *uuid.UUID
	CategoryID  *uuid.UUID
	IsCompleted *bool
}

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error)
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func withTaskRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Project").Preload("Category").Preload("User").Preload("Assignee")
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return GetDB(ctx, r.db).Omit("Project", "Category", "User", "Assignee").Create(task).Error
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := withTaskRelations(GetDB(ctx, r.db)).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, int64, error) {
	var tasks []model.Task
	var total int64

	db := GetDB(ctx, r.db)
	q := db.Model(&model.Task{})
	switch {
	case filter.UserID != nil && filter.AssigneeID != nil:
		q = q.Where(db.Where("user_id = ?", *filter.UserID).Or("assignee_id = ?", *filter.AssigneeID))
	case filter.UserID != nil:
		q = q.Where("user_id = ?", *filter.UserID)
	case filter.AssigneeID != nil:
		q = q.Where("assignee_id = ?", *filter.AssigneeID)
	}
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.IsCompleted != nil {
		q = q.Where("is_completed = ?", *filter.IsCompleted)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = orderBy(q, filter.ListOptions, []string{"title", "created_at", "due_date"}, "created_at")
	if err := withTaskRelations(page(q, filter.ListOptions)).Find(&tasks).Error; err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return GetDB(ctx, r.db).Omit("Project", "Category", "User", "Assignee").Save(task).Error
}

func (r *taskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Task{}).Error
}

// DeleteForUser permanently removes tasks the user owns or is assigned to.
func (r *taskRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Unscoped().
		Where("user_id = ? OR assignee_id = ?", userID, userID).
		Delete(&model.Task{}).Error
}
