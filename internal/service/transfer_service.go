package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"taskhub/internal/model"
	"taskhub/internal/queue"
	"taskhub/internal/repository"
	"taskhub/internal/storage"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	ImportMaxSize = 5 << 20

	importPrefix = "imports/"
	exportPrefix = "exports/"
)

// Realtime job events
const (
	EventImportCompleted = "import.completed"
	EventExportCompleted = "export.completed"
)

var exportHeader = []string{"ID", "Title", "Description", "Project Name", "Category Name", "Due Date", "Completed", "Created At"}

// ExportFilter narrows the tasks written by an export. The requester's own tasks are always the base set.
type ExportFilter struct {
	ProjectID   *uuid.UUID
	CategoryID  *uuid.UUID
	IsCompleted *bool
}

// TransferService moves tasks in and out of CSV files through background jobs.
type TransferService interface {
	ImportTasks(ctx context.Context, actor *model.User, filename string, r io.Reader) (*model.Job, error)
	ExportTasks(ctx context.Context, actor *model.User, filter ExportFilter) (*model.Job, error)
	GetJob(ctx context.Context, actor *model.User, id uuid.UUID) (*model.Job, error)
	ListJobs(ctx context.Context, actor *model.User) ([]model.Job, error)
	OpenExport(ctx context.Context, actor *model.User, jobID uuid.UUID) (io.ReadCloser, string, error)

	// ProcessJob runs a dequeued job and returns its log output and result metadata.
	ProcessJob(ctx context.Context, job *model.Job) (string, map[string]interface{}, error)
}

type transferService struct {
	jobs       repository.JobRepository
	tasks      repository.TaskRepository
	projects   repository.ProjectRepository
	categories repository.CategoryRepository
	tx         repository.TransactionManager
	store      storage.Storage
	queue      queue.Queue
	notifier   Notifier
	logger     *slog.Logger
}

func NewTransferService(jobs repository.JobRepository, tasks repository.TaskRepository, projects repository.ProjectRepository, categories repository.CategoryRepository, tx repository.TransactionManager, store storage.Storage, q queue.Queue, notifier Notifier, logger *slog.Logger) TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	return &transferService{
		jobs:       jobs,
		tasks:      tasks,
		projects:   projects,
		categories: categories,
		tx:         tx,
		store:      store,
		queue:      q,
		notifier:   notifier,
		logger:     logger,
	}
}

func (s *transferService) ImportTasks(ctx context.Context, actor *model.User, filename string, r io.Reader) (*model.Job, error) {
	data, err := io.ReadAll(io.LimitReader(r, ImportMaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}
	switch {
	case len(data) == 0:
		return nil, fieldError("file", "The file field is required.")
	case len(data) > ImportMaxSize:
		return nil, fieldError("file", "The file must not be greater than 5MB.")
	case !strings.EqualFold(path.Ext(filename), ".csv") || !isText(mimetype.Detect(data)):
		return nil, fieldError("file", "The file must be a file of type: csv.")
	}

	key := importPrefix + uuid.NewString() + ".csv"
	if err := s.store.Put(ctx, key, bytes.NewReader(data), "text/csv"); err != nil {
		return nil, fmt.Errorf("failed to store import file: %w", err)
	}

	job := &model.Job{
		UserID: actor.ID,
		Type:   model.JobTypeImportTasks,
		Metadata: map[string]interface{}{
			"file":     key,
			"filename": path.Base(strings.ReplaceAll(filename, "\\", "/")),
		},
	}
	if err := s.enqueue(ctx, job); err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	return job, nil
}

func (s *transferService) ExportTasks(ctx context.Context, actor *model.User, filter ExportFilter) (*model.Job, error) {
	meta := map[string]interface{}{}
	if filter.ProjectID != nil {
		meta["project_id"] = filter.ProjectID.String()
	}
	if filter.CategoryID != nil {
		meta["category_id"] = filter.CategoryID.String()
	}
	if filter.IsCompleted != nil {
		meta["is_completed"] = *filter.IsCompleted
	}

	job := &model.Job{
		UserID:   actor.ID,
		Type:     model.JobTypeExportTasks,
		Metadata: meta,
	}
	if err := s.enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *transferService) enqueue(ctx context.Context, job *model.Job) error {
	if err := s.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.queue.Enqueue(ctx, queue.Message{JobID: job.ID, Type: job.Type}); err != nil {
		if ferr := s.jobs.Fail(ctx, job.ID, "failed to enqueue job", ""); ferr != nil {
			s.logger.ErrorContext(ctx, "Failed to mark job as failed", "job_id", job.ID, "error", ferr)
		}
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.logger.InfoContext(ctx, "Job queued", "job_id", job.ID, "type", job.Type, "user_id", job.UserID)
	return nil
}

func (s *transferService) GetJob(ctx context.Context, actor *model.User, id uuid.UUID) (*model.Job, error) {
	job, err := s.jobs.GetForUser(ctx, id, actor.ID)
	if err != nil {
		return nil, notFound(err, "job")
	}
	return job, nil
}

func (s *transferService) ListJobs(ctx context.Context, actor *model.User) ([]model.Job, error) {
	jobs, err := s.jobs.ListForUser(ctx, actor.ID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}
	return jobs, nil
}

// OpenExport returns the file written by a completed export job and its download name.
func (s *transferService) OpenExport(ctx context.Context, actor *model.User, jobID uuid.UUID) (io.ReadCloser, string, error) {
	job, err := s.GetJob(ctx, actor, jobID)
	if err != nil {
		return nil, "", err
	}
	key, _ := job.Metadata["path"].(string)
	if job.Type != model.JobTypeExportTasks || job.Status != model.JobStatusCompleted || key == "" {
		return nil, "", fmt.Errorf("export file %w", ErrNotFound)
	}

	rc, err := s.store.Open(ctx, key)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, "", fmt.Errorf("export file %w", ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}
	return rc, path.Base(key), nil
}

func (s *transferService) ProcessJob(ctx context.Context, job *model.Job) (string, map[string]interface{}, error) {
	switch job.Type {
	case model.JobTypeImportTasks:
		return s.runImport(ctx, job)
	case model.JobTypeExportTasks:
		return s.runExport(ctx, job)
	default:
		return "", nil, fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (s *transferService) runImport(ctx context.Context, job *model.Job) (string, map[string]interface{}, error) {
	key, _ := job.Metadata["file"].(string)
	if key == "" {
		return "", nil, errors.New("import job has no file")
	}

	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read header row: %w", err)
	}
	cols := headingIndex(header)
	for _, required := range []string{"title", "project_name", "category_name"} {
		if _, ok := cols[required]; !ok {
			return "", nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var logs []string
	imported, skipped := 0, 0

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		line := 1
		for {
			record, err := reader.Read()
			if err == io.EOF {
				return nil
			}
			line++
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			row := func(name string) string {
				if i, ok := cols[name]; ok && i < len(record) {
					return strings.TrimSpace(record[i])
				}
				return ""
			}
			if strings.Join(record, "") == "" {
				continue
			}

			task, reason := s.importRow(txCtx, job.UserID, row)
			if reason != "" {
				skipped++
				logs = append(logs, fmt.Sprintf("line %d skipped: %s", line, reason))
				continue
			}
			if task == nil {
				return fmt.Errorf("line %d: failed to resolve project or category", line)
			}
			if err := s.tasks.Create(txCtx, task); err != nil {
				return fmt.Errorf("line %d: failed to create task: %w", line, err)
			}
			imported++
		}
	})
	if err != nil {
		return strings.Join(logs, "\n"), nil, err
	}

	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete import file", "job_id", job.ID, "path", key, "error", err)
	}

	logs = append(logs, fmt.Sprintf("imported %d tasks, skipped %d rows", imported, skipped))
	result := map[string]interface{}{"imported": imported, "skipped": skipped}
	s.notify(job.UserID, EventImportCompleted, map[string]interface{}{
		"job_id":   job.ID,
		"imported": imported,
		"skipped":  skipped,
	})
	return strings.Join(logs, "\n"), result, nil
}

// importRow builds a task from one CSV row. A non-empty reason means the row is skipped;
// a nil task with no reason means a lookup failed.
func (s *transferService) importRow(ctx context.Context, userID uuid.UUID, row func(string) string) (*model.Task, string) {
	title := row("title")
	projectName := row("project_name")
	categoryName := row("category_name")
	switch {
	case title == "":
		return nil, "title is empty"
	case len(title) > 255:
		return nil, "title is longer than 255 characters"
	case projectName == "":
		return nil, "project_name is empty"
	case categoryName == "":
		return nil, "category_name is empty"
	}

	due, err := parseDate("due_date", row("due_date"))
	if err != nil {
		return nil, "due_date is not a valid date"
	}

	project, err := s.projects.FirstOrCreateByName(ctx, projectName, model.Project{
		Description: "Imported project",
		Status:      model.ProjectStatusActive,
		UserID:      userID,
		IsActive:    true,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resolve project", "name", projectName, "error", err)
		return nil, ""
	}
	category, err := s.categories.FirstOrCreateByName(ctx, categoryName)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to resolve category", "name", categoryName, "error", err)
		return nil, ""
	}

	owner := userID
	return &model.Task{
		Title:       title,
		Description: row("description"),
		ProjectID:   &project.ID,
		CategoryID:  &category.ID,
		UserID:      &owner,
		DueDate:     due,
		IsCompleted: truthy(row("is_completed")),
		MetaData:    map[string]interface{}{"imported": true},
	}, ""
}

func (s *transferService) runExport(ctx context.Context, job *model.Job) (string, map[string]interface{}, error) {
	owner := job.UserID
	filter := repository.TaskFilter{UserID: &owner}
	if v, ok := job.Metadata["project_id"].(string); ok {
		if id, err := uuid.Parse(v); err == nil {
			filter.ProjectID = &id
		}
	}
	if v, ok := job.Metadata["category_id"].(string); ok {
		if id, err := uuid.Parse(v); err == nil {
			filter.CategoryID = &id
		}
	}
	if v, ok := job.Metadata["is_completed"].(bool); ok {
		filter.IsCompleted = &v
	}

	tasks, _, err := s.tasks.List(ctx, filter)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch tasks: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return "", nil, err
	}
	for i := range tasks {
		if err := w.Write(exportRecord(&tasks[i])); err != nil {
			return "", nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", nil, fmt.Errorf("failed to write export: %w", err)
	}

	key := fmt.Sprintf("%stasks_export_%s_%s.csv", exportPrefix, job.UserID, randomSuffix())
	if err := s.store.Put(ctx, key, &buf, "text/csv"); err != nil {
		return "", nil, fmt.Errorf("failed to store export: %w", err)
	}

	download := "/api/jobs/" + job.ID.String() + "/download"
	s.notify(job.UserID, EventExportCompleted, map[string]interface{}{
		"job_id":       job.ID,
		"path":         key,
		"download_url": download,
	})

	logs := fmt.Sprintf("exported %d tasks to %s", len(tasks), key)
	return logs, map[string]interface{}{"path": key, "count": len(tasks), "download_url": download}, nil
}

func (s *transferService) notify(userID uuid.UUID, event string, payload interface{}) {
	if s.notifier != nil {
		s.notifier.Notify(userID, event, payload)
	}
}

func exportRecord(t *model.Task) []string {
	var projectName, categoryName, due string
	if t.Project != nil {
		projectName = t.Project.Name
	}
	if t.Category != nil {
		categoryName = t.Category.Name
	}
	if t.DueDate != nil {
		due = t.DueDate.Format("2006-01-02")
	}
	completed := "No"
	if t.IsCompleted {
		completed = "Yes"
	}
	return []string{
		t.ID.String(),
		t.Title,
		t.Description,
		projectName,
		categoryName,
		due,
		completed,
		t.CreatedAt.UTC().Format(time.DateTime),
	}
}

// headingIndex maps slugged header names ("Project Name" -> "project_name") to column positions.
func headingIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		slug := strings.Join(strings.Fields(strings.ToLower(h)), "_")
		if _, dup := cols[slug]; !dup {
			cols[slug] = i
		}
	}
	return cols
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "yes", "y":
		return true
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
