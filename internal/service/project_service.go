package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskhub/internal/model"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectPriorities lists the accepted values of the metadata priority.
var ProjectPriorities = []string{"low", "medium", "high", "urgent"}

// ProjectMetadata is the structured part of a project's settings.
type ProjectMetadata struct {
	ClientName string `json:"client_name"`
	Priority   string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Notes      string `json:"notes"`
}

// ProjectRequest is used for both create and update. On update, nil fields are left unchanged.
type ProjectRequest struct {
	Name        *string                `json:"name" binding:"omitempty,max=255"`
	Description *string                `json:"description"`
	Status      *string                `json:"status" binding:"omitempty,project_status"`
	StartDate   *string                `json:"start_date"`
	EndDate     *string                `json:"end_date"`
	Budget      *decimal.Decimal       `json:"budget" swaggertype:"number"`
	ManagerID   *uuid.UUID             `json:"manager_id"`
	Metadata    *ProjectMetadata       `json:"metadata"`
	Settings    map[string]interface{} `json:"settings"`
	IsActive    *bool                  `json:"is_active"`
}

type ProjectService interface {
	ListProjects(ctx context.Context, filter repository.ProjectFilter) ([]model.Project, int64, error)
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	CreateProject(ctx context.Context, owner *model.User, req ProjectRequest) (*model.Project, error)
	UpdateProject(ctx context.Context, actor *model.User, id uuid.UUID, req ProjectRequest) (*model.Project, error)
	DeleteProject(ctx context.Context, actor *model.User, id uuid.UUID) error
}

type projectService struct {
	projects repository.ProjectRepository
	users    repository.UserRepository
	audit    AuditService
	logger   *slog.Logger
}

func NewProjectService(projects repository.ProjectRepository, users repository.UserRepository, audit AuditService, logger *slog.Logger) ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &projectService{projects: projects, users: users, audit: audit, logger: logger}
}

func (s *projectService) ListProjects(ctx context.Context, filter repository.ProjectFilter) ([]model.Project, int64, error) {
	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch projects: %w", err)
	}
	return projects, total, nil
}

func (s *projectService) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "project")
	}
	return project, nil
}

func (s *projectService) CreateProject(ctx context.Context, owner *model.User, req ProjectRequest) (*model.Project, error) {
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		return nil, fieldError("name", "The name field is required.")
	}

	project := &model.Project{
		UserID:   owner.ID,
		Status:   model.ProjectStatusActive,
		Settings: map[string]interface{}{},
		IsActive: true,
	}
	if err := s.apply(ctx, project, req); err != nil {
		return nil, err
	}

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.audit.Record(ctx, &owner.ID, model.AuditCreated, model.AuditTypeProject, project.ID, nil, snapshot(project))
	s.logger.InfoContext(ctx, "Project created", "project_id", project.ID, "user_id", owner.ID)
	return project, nil
}

func (s *projectService) UpdateProject(ctx context.Context, actor *model.User, id uuid.UUID, req ProjectRequest) (*model.Project, error) {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	project.User, project.Manager = nil, nil
	before := snapshot(project)

	if err := s.apply(ctx, project, req); err != nil {
		return nil, err
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.AuditUpdated, model.AuditTypeProject, project.ID, before, snapshot(project))
	return project, nil
}

func (s *projectService) DeleteProject(ctx context.Context, actor *model.User, id uuid.UUID) error {
	project, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}
	project.User, project.Manager = nil, nil

	if err := s.projects.Delete(ctx, project.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.AuditDeleted, model.AuditTypeProject, project.ID, snapshot(project), nil)
	s.logger.InfoContext(ctx, "Project deleted", "project_id", project.ID)
	return nil
}

// apply validates req against the project's current state and copies it on.
func (s *projectService) apply(ctx context.Context, p *model.Project, req ProjectRequest) error {
	bag := errorBag{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			bag.add("name", "The name field is required.")
		} else if len(name) > 255 {
			bag.add("name", "The name must not be greater than 255 characters.")
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Status != nil && *req.Status != "" {
		if !oneOf(*req.Status, model.ProjectStatuses) {
			bag.add("status", "The selected status is invalid.")
		}
		p.Status = *req.Status
	}

	if req.StartDate != nil {
		d, err := parseDate("start_date", *req.StartDate)
		if err != nil {
			bag.add("start_date", err.Error())
		}
		p.StartDate = d
	}
	if req.EndDate != nil {
		d, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			bag.add("end_date", err.Error())
		}
		p.EndDate = d
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		bag.add("end_date", "The end date must be a date after or equal to start date.")
	}

	if req.Budget != nil {
		if req.Budget.IsNegative() {
			bag.add("budget", "The budget must be at least 0.")
		}
		p.Budget = req.Budget.Round(2)
	}

	if req.ManagerID != nil {
		if *req.ManagerID == uuid.Nil {
			p.ManagerID = nil
		} else if _, err := s.users.GetByID(ctx, *req.ManagerID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check manager: %w", err)
			}
			bag.add("manager_id", "The selected manager id is invalid.")
		} else {
			id := *req.ManagerID
			p.ManagerID = &id
		}
	}

	if req.Settings != nil {
		p.Settings = req.Settings
	}
	if req.Metadata != nil {
		if req.Metadata.Priority != "" && !oneOf(req.Metadata.Priority, ProjectPriorities) {
			bag.add("metadata.priority", "The selected metadata.priority is invalid.")
		}
		if p.Settings == nil {
			p.Settings = map[string]interface{}{}
		}
		p.Settings["client_name"] = req.Metadata.ClientName
		p.Settings["priority"] = req.Metadata.Priority
		p.Settings["notes"] = req.Metadata.Notes
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	return bag.err()
}
