package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task status values
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// TaskStatuses lists every accepted task status.
var TaskStatuses = []string{
	TaskStatusPending,
	TaskStatusInProgress,
	TaskStatusCompleted,
	TaskStatusCancelled,
}

// Task is a unit of work inside a project. UserID is the owner, AssigneeID
// the person doing the work; both default to each other.
type Task struct {
	ID             uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string                 `gorm:"type:varchar(255);not null" json:"title"`
	Description    string                 `gorm:"type:text" json:"description"`
	ProjectID      *uuid.UUID             `gorm:"type:uuid;index" json:"project_id"`
	Project        *Project               `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE;" json:"project,omitempty"`
	CategoryID     *uuid.UUID             `gorm:"type:uuid;index" json:"category_id"`
	Category       *Category              `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL;" json:"category,omitempty"`
	UserID         *uuid.UUID             `gorm:"type:uuid;index" json:"user_id"`
	User           *User                  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"user,omitempty"`
	AssigneeID     *uuid.UUID             `gorm:"type:uuid;index" json:"assignee_id"`
	Assignee       *User                  `gorm:"foreignKey:AssigneeID;constraint:OnDelete:CASCADE;" json:"assignee,omitempty"`
	DueDate        *time.Time             `json:"due_date"`
	IsCompleted    bool                   `gorm:"not null" json:"is_completed"`
	Status         string                 `gorm:"type:varchar(20);not null;index" json:"status"`
	MetaData       map[string]interface{} `gorm:"serializer:json" json:"meta_data"`
	Attachment     string                 `gorm:"type:varchar(255)" json:"attachment"`
	AttachmentName string                 `gorm:"type:varchar(255)" json:"attachment_name"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	DeletedAt      gorm.DeletedAt         `gorm:"index" json:"-"`
}

// TaskChange marks which of the linked fields an update touched.
type TaskChange struct {
	Status      bool
	IsCompleted bool
	UserID      bool
	AssigneeID  bool
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.normalizeNew()
	return nil
}

func (t *Task) normalizeNew() {
	if t.Status == "" {
		if t.IsCompleted {
			t.Status = TaskStatusCompleted
		} else {
			t.Status = TaskStatusPending
		}
	} else {
		t.IsCompleted = t.Status == TaskStatusCompleted
	}

	if t.AssigneeID != nil && t.UserID == nil {
		id := *t.AssigneeID
		t.UserID = &id
	} else if t.UserID != nil && t.AssigneeID == nil {
		id := *t.UserID
		t.AssigneeID = &id
	}
}

// Reconcile keeps status/is_completed and user/assignee consistent after an
// update. A changed status wins over a changed completion flag, and a changed
// assignee wins over a changed owner.
func (t *Task) Reconcile(c TaskChange) {
	if c.Status {
		t.IsCompleted = t.Status == TaskStatusCompleted
	} else if c.IsCompleted {
		if t.IsCompleted {
			t.Status = TaskStatusCompleted
		} else {
			t.Status = TaskStatusPending
		}
	}

	if c.AssigneeID && t.AssigneeID != nil {
		id := *t.AssigneeID
		t.UserID = &id
	} else if c.UserID && t.UserID != nil {
		id := *t.UserID
		t.AssigneeID = &id
	}
}
