package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment limits
const (
	AttachmentMinSize = 1 << 10
	AttachmentMaxSize = 500 << 10
	attachmentPrefix  = "attachments/"
)

// Realtime task events
const (
	EventTaskCreated = "task.created"
	EventTaskUpdated = "task.updated"
	EventTaskDeleted = "task.deleted"
)

// Notifier pushes realtime events to a user's open connections.
type Notifier interface {
	Notify(userID uuid.UUID, event string, payload interface{})
}

// TaskRequest is used for both create and update. On update, nil fields are left unchanged.
type TaskRequest struct {
	Title       *string                `json:"title" binding:"omitempty,max=255"`
	Description *string                `json:"description"`
	ProjectID   *uuid.UUID             `json:"project_id"`
	CategoryID  *uuid.UUID             `json:"category_id"`
	UserID      *uuid.UUID             `json:"user_id"`
	AssigneeID  *uuid.UUID             `json:"assignee_id"`
	DueDate     *string                `json:"due_date"`
	IsCompleted *bool                  `json:"is_completed"`
	Status      *string                `json:"status" binding:"omitempty,task_status"`
	MetaData    map[string]interface{} `json:"meta_data"`
}

type TaskService interface {
	ListTasks(ctx context.Context, filter repository.TaskFilter) ([]model.Task, int64, error)
	GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error)
	CreateTask(ctx context.Context, actor *model.User, req TaskRequest) (*model.Task, error)
	UpdateTask(ctx context.Context, actor *model.User, id uuid.UUID, req TaskRequest) (*model.Task, error)
	DeleteTask(ctx context.Context, actor *model.User, id uuid.UUID) error
	UploadAttachment(ctx context.Context, actor *model.User, id uuid.UUID, filename string, r io.Reader) (*model.Task, error)
	OpenAttachment(ctx context.Context, filename string) (io.ReadCloser, error)
	History(ctx context.Context, id uuid.UUID) ([]AuditLogResponse, error)
}

type taskService struct {
	tasks      repository.TaskRepository
	projects   repository.ProjectRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	audit      AuditService
	store      storage.Storage
	notifier   Notifier
	logger     *slog.Logger
}

// NewTaskService builds the task service. notifier may be nil.
func NewTaskService(tasks repository.TaskRepository, projects repository.ProjectRepository, categories repository.CategoryRepository, users repository.UserRepository, audit AuditService, store storage.Storage, notifier Notifier, logger *slog.Logger) TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &taskService{
		tasks:      tasks,
		projects:   projects,
		categories: categories,
		users:      users,
		audit:      audit,
		store:      store,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *taskService) ListTasks(ctx context.Context, filter repository.TaskFilter) ([]model.Task, int64, error) {
	tasks, total, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch tasks: %w", err)
	}
	return tasks, total, nil
}

func (s *taskService) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "task")
	}
	return task, nil
}

func (s *taskService) CreateTask(ctx context.Context, actor *model.User, req TaskRequest) (*model.Task, error) {
	bag := errorBag{}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		bag.add("title", "The title field is required.")
	}
	if req.ProjectID == nil {
		bag.add("project_id", "The project id field is required.")
	}
	if req.CategoryID == nil {
		bag.add("category_id", "The category id field is required.")
	}
	if err := bag.err(); err != nil {
		return nil, err
	}

	task := &model.Task{}
	if req.UserID == nil {
		id := actor.ID
		req.UserID = &id
	}
	if _, err := s.apply(ctx, task, req); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.AuditCreated, model.AuditTypeTask, task.ID, nil, taskSnapshot(task))
	s.logger.InfoContext(ctx, "Task created", "task_id", task.ID, "user_id", actor.ID)

	created, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	s.notify(EventTaskCreated, created, created)
	return created, nil
}

func (s *taskService) UpdateTask(ctx context.Context, actor *model.User, id uuid.UUID, req TaskRequest) (*model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	before := taskSnapshot(task)
	previous := *task

	change, err := s.apply(ctx, task, req)
	if err != nil {
		return nil, err
	}
	task.Reconcile(change)

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.AuditUpdated, model.AuditTypeTask, task.ID, before, taskSnapshot(task))

	updated, err := s.GetTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	s.notify(EventTaskUpdated, updated, &previous, updated)
	return updated, nil
}

func (s *taskService) DeleteTask(ctx context.Context, actor *model.User, id uuid.UUID) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task.Attachment != "" {
		if err := s.store.Delete(ctx, task.Attachment); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete attachment", "task_id", task.ID, "path", task.Attachment, "error", err)
		}
	}

	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.AuditDeleted, model.AuditTypeTask, task.ID, taskSnapshot(task), nil)
	s.notify(EventTaskDeleted, map[string]interface{}{"id": task.ID}, task)
	s.logger.InfoContext(ctx, "Task deleted", "task_id", task.ID, "user_id", actor.ID)
	return nil
}

// UploadAttachment stores a PDF for the task, replacing any previous one.
func (s *taskService) UploadAttachment(ctx context.Context, actor *model.User, id uuid.UUID, filename string, r io.Reader) (*model.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, AttachmentMaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	switch {
	case len(data) < AttachmentMinSize:
		return nil, fieldError("attachment", "File size must be at least 1KB.")
	case len(data) > AttachmentMaxSize:
		return nil, fieldError("attachment", "File size must not exceed 500KB.")
	}
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return nil, fieldError("attachment", "Only PDF files are allowed.")
	}

	key := attachmentPrefix + uuid.NewString() + ".pdf"
	if err := s.store.Put(ctx, key, bytes.NewReader(data), "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	old := task.Attachment
	before := taskSnapshot(task)
	task.Attachment = key
	task.AttachmentName = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if err := s.tasks.Update(ctx, task); err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if old != "" {
		if err := s.store.Delete(ctx, old); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete previous attachment", "task_id", task.ID, "path", old, "error", err)
		}
	}

	s.audit.Record(ctx, &actor.ID, model.AuditUpdated, model.AuditTypeTask, task.ID, before, taskSnapshot(task))
	s.logger.InfoContext(ctx, "Attachment uploaded", "task_id", task.ID, "path", key, "filename", task.AttachmentName, "user_id", actor.ID)

	s.notify(EventTaskUpdated, task, task)
	return task, nil
}

// OpenAttachment opens a stored attachment by its file name.
func (s *taskService) OpenAttachment(ctx context.Context, filename string) (io.ReadCloser, error) {
	key, err := storage.CleanKey(attachmentPrefix + filename)
	if err != nil || !strings.HasPrefix(key, attachmentPrefix) {
		return nil, fmt.Errorf("file %w", ErrNotFound)
	}
	rc, err := s.store.Open(ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, fmt.Errorf("file %w", ErrNotFound)
	}
	return rc, err
}

func (s *taskService) History(ctx context.Context, id uuid.UUID) ([]AuditLogResponse, error) {
	if _, err := s.GetTask(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, model.AuditTypeTask, id)
}

// apply validates req and copies it onto task, reporting which linked fields changed.
func (s *taskService) apply(ctx context.Context, t *model.Task, req TaskRequest) (model.TaskChange, error) {
	var change model.TaskChange
	bag := errorBag{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			bag.add("title", "The title field is required.")
		} else if len(title) > 255 {
			bag.add("title", "The title must not be greater than 255 characters.")
		}
		t.Title = title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}

	if req.ProjectID != nil {
		if err := s.exists("project_id", *req.ProjectID, func(id uuid.UUID) error {
			_, err := s.projects.GetByID(ctx, id)
			return err
		}, bag); err != nil {
			return change, err
		}
		id := *req.ProjectID
		t.ProjectID, t.Project = &id, nil
	}
	if req.CategoryID != nil {
		if err := s.exists("category_id", *req.CategoryID, func(id uuid.UUID) error {
			_, err := s.categories.GetByID(ctx, id)
			return err
		}, bag); err != nil {
			return change, err
		}
		id := *req.CategoryID
		t.CategoryID, t.Category = &id, nil
	}
	if req.UserID != nil {
		if err := s.exists("user_id", *req.UserID, s.userExists(ctx), bag); err != nil {
			return change, err
		}
		id := *req.UserID
		change.UserID = t.UserID == nil || *t.UserID != id
		t.UserID, t.User = &id, nil
	}
	if req.AssigneeID != nil {
		if err := s.exists("assignee_id", *req.AssigneeID, s.userExists(ctx), bag); err != nil {
			return change, err
		}
		id := *req.AssigneeID
		change.AssigneeID = t.AssigneeID == nil || *t.AssigneeID != id
		t.AssigneeID, t.Assignee = &id, nil
	}

	if req.DueDate != nil {
		d, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			bag.add("due_date", err.Error())
		}
		t.DueDate = d
	}
	if req.Status != nil {
		if !oneOf(*req.Status, model.TaskStatuses) {
			bag.add("status", "The selected status is invalid.")
		}
		change.Status = true
		t.Status = *req.Status
	}
	if req.IsCompleted != nil {
		change.IsCompleted = true
		t.IsCompleted = *req.IsCompleted
	}
	if req.MetaData != nil {
		t.MetaData = req.MetaData
	}

	return change, bag.err()
}

func (s *taskService) userExists(ctx context.Context) func(uuid.UUID) error {
	return func(id uuid.UUID) error {
		_, err := s.users.GetByID(ctx, id)
		return err
	}
}

// exists records a field error when lookup reports a missing record.
func (s *taskService) exists(field string, id uuid.UUID, lookup func(uuid.UUID) error, bag errorBag) error {
	err := lookup(id)
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bag.add(field, "The selected "+strings.ReplaceAll(field, "_", " ")+" is invalid.")
		return nil
	}
	return fmt.Errorf("failed to check %s: %w", field, err)
}

// notify sends event once to every owner and assignee of tasks.
func (s *taskService) notify(event string, payload interface{}, tasks ...*model.Task) {
	if s.notifier == nil {
		return
	}
	sent := map[uuid.UUID]bool{}
	for _, t := range tasks {
		for _, id := range []*uuid.UUID{t.UserID, t.AssigneeID} {
			if id != nil && !sent[*id] {
				sent[*id] = true
				s.notifier.Notify(*id, event, payload)
			}
		}
	}
}

// taskSnapshot captures the task's own columns for the audit log.
func taskSnapshot(t *model.Task) map[string]interface{} {
	c := *t
	c.Project, c.Category, c.User, c.Assignee = nil, nil, nil, nil
	return snapshot(c)
}
