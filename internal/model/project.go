package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project status values
const (
	ProjectStatusActive    = "active"
	ProjectStatusPlanning  = "planning"
	ProjectStatusOnHold    = "onhold"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

// ProjectStatuses lists every accepted project status.
var ProjectStatuses = []string{
	ProjectStatusActive,
	ProjectStatusPlanning,
	ProjectStatusOnHold,
	ProjectStatusCompleted,
	ProjectStatusCancelled,
}

// Project groups tasks under an owner and an optional manager.
type Project struct {
	ID          uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string                 `gorm:"type:varchar(255);not null;index" json:"name"`
	Description string                 `gorm:"type:text" json:"description"`
	Status      string                 `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	StartDate   *time.Time             `json:"start_date"`
	EndDate     *time.Time             `json:"end_date"`
	Budget      decimal.Decimal        `gorm:"type:decimal(14,2);not null;default:0" json:"budget"`
	ManagerID   *uuid.UUID             `gorm:"type:uuid;index" json:"manager_id"`
	Manager     *User                  `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	UserID      uuid.UUID              `gorm:"type:uuid;not null;index" json:"user_id"` // owner
	User        *User                  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Settings    map[string]interface{} `gorm:"serializer:json" json:"settings"`
	IsActive    bool                   `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	DeletedAt   gorm.DeletedAt         `gorm:"index" json:"-"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	return nil
}
