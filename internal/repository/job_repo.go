package repository

import (
	"context"
	"errors"
	"time"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrJobNotFound is returned when a status update targets an unknown job.
var ErrJobNotFound = errors.New("job not found")

// JobRepository persists background jobs; the queue only carries their IDs.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.Job, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Job, error)
	MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) error
	Complete(ctx context.Context, id uuid.UUID, logs string, metadata map[string]interface{}) error
	Fail(ctx context.Context, id uuid.UUID, errorMsg, logs string) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	return GetDB(ctx, r.db).Create(job).Error
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) GetForUser(ctx context.Context, id, userID uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]model.Job, error) {
	var jobs []model.Job
	err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at desc").Limit(limit).Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) MarkRunning(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":     model.JobStatusRunning,
		"started_at": at,
	})
}

func (r *jobRepository) Complete(ctx context.Context, id uuid.UUID, logs string, metadata map[string]interface{}) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	now := time.Now()
	job.Status = model.JobStatusCompleted
	job.CompletedAt = &now
	job.Logs = appendLog(job.Logs, logs)
	if len(metadata) > 0 {
		if job.Metadata == nil {
			job.Metadata = map[string]interface{}{}
		}
		for k, v := range metadata {
			job.Metadata[k] = v
		}
	}
	return GetDB(ctx, r.db).Save(job).Error
}

func (r *jobRepository) Fail(ctx context.Context, id uuid.UUID, errorMsg, logs string) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	now := time.Now()
	job.Status = model.JobStatusFailed
	job.Error = errorMsg
	job.CompletedAt = &now
	job.Logs = appendLog(job.Logs, logs)
	return GetDB(ctx, r.db).Save(job).Error
}

func (r *jobRepository) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := GetDB(ctx, r.db).Model(&model.Job{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func appendLog(existing, logs string) string {
	if logs == "" {
		return existing
	}
	if existing == "" {
		return logs
	}
	return existing + "\n" + logs
}
