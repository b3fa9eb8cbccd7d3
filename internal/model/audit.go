package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit events
const (
	AuditCreated = "created"
	AuditUpdated = "updated"
	AuditDeleted = "deleted"
)

// Auditable entity types
const (
	AuditTypeTask    = "task"
	AuditTypeProject = "project"
)

// AuditLog tracks who changed which record, and the before/after values.
type AuditLog struct {
	ID            uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        *uuid.UUID             `gorm:"type:uuid;index" json:"user_id"` // nil for background jobs
	User          *User                  `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL;" json:"user,omitempty"`
	Event         string                 `gorm:"type:varchar(20);not null;index" json:"event"`
	AuditableType string                 `gorm:"type:varchar(50);not null;index:idx_auditable" json:"auditable_type"`
	AuditableID   uuid.UUID              `gorm:"type:uuid;not null;index:idx_auditable" json:"auditable_id"`
	OldValues     map[string]interface{} `gorm:"serializer:json" json:"old_values"`
	NewValues     map[string]interface{} `gorm:"serializer:json" json:"new_values"`
	IPAddress     string                 `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	CreatedAt     time.Time              `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
