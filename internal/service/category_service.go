package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"taskhub/internal/model"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// CategoryRequest is used for both create and update. On update, nil fields are left unchanged.
type CategoryRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Color    *string `json:"color" binding:"omitempty,max=7"`
	IsActive *bool   `json:"is_active"`
}

type CategoryService interface {
	ListCategories(ctx context.Context, filter repository.CategoryFilter) ([]model.Category, int64, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error)
	CreateCategory(ctx context.Context, req CategoryRequest) (*model.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*model.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	repo repository.CategoryRepository
}

func NewCategoryService(repo repository.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func (s *categoryService) ListCategories(ctx context.Context, filter repository.CategoryFilter) ([]model.Category, int64, error) {
	categories, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return categories, total, nil
}

func (s *categoryService) GetCategory(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "category")
	}
	return category, nil
}

func (s *categoryService) CreateCategory(ctx context.Context, req CategoryRequest) (*model.Category, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, fieldError("name", "The name field is required.")
	}

	category := &model.Category{IsActive: true}
	if err := s.apply(ctx, category, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*model.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, category, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

func (s *categoryService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (s *categoryService) apply(ctx context.Context, c *model.Category, req CategoryRequest) error {
	bag := errorBag{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			bag.add("name", "The name field is required.")
		} else {
			existing, err := s.repo.GetByName(ctx, name)
			if err == nil && existing.ID != c.ID {
				bag.add("name", "The name has already been taken.")
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check category name: %w", err)
			}
		}
		c.Name = name
	}
	if req.Color != nil {
		if !hexColor.MatchString(*req.Color) {
			bag.add("color", "The color must be a hex color such as #1f2937.")
		}
		c.Color = *req.Color
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}

	return bag.err()
}
