package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType identifies what a background job does.
type JobType string

const (
	JobTypeImportTasks JobType = "import_tasks"
	JobTypeExportTasks JobType = "export_tasks"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a queued import or export requested by a user.
type Job struct {
	ID          uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID              `gorm:"type:uuid;not null;index" json:"user_id"`
	Type        JobType                `gorm:"type:varchar(30);not null" json:"type"`
	Status      JobStatus              `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Logs        string                 `gorm:"type:text" json:"logs"`
	Error       string                 `gorm:"type:text" json:"error,omitempty"`
	Metadata    map[string]interface{} `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
