package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultGuard is the only guard the API issues roles and permissions under.
const DefaultGuard = "web"

// PermissionData is the raw permission payload stored on a role. It is kept
// as bytes because rows written by older clients may hold either a list of
// permission names or a name → bool object, and some hold neither.
type PermissionData []byte

// NewPermissionData encodes a permission → granted map.
func NewPermissionData(perms map[string]bool) (PermissionData, error) {
	b, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	return PermissionData(b), nil
}

func (d PermissionData) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return string(d), nil
}

func (d *PermissionData) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = nil
	case []byte:
		*d = append((*d)[:0], v...)
	case string:
		*d = PermissionData(v)
	default:
		return fmt.Errorf("unsupported permission data type %T", src)
	}
	return nil
}

// MarshalJSON emits the stored payload verbatim, or null when it is not valid JSON.
func (d PermissionData) MarshalJSON() ([]byte, error) {
	if len(d) == 0 || !json.Valid(d) {
		return []byte("null"), nil
	}
	return []byte(d), nil
}

func (d *PermissionData) UnmarshalJSON(b []byte) error {
	*d = append((*d)[:0], b...)
	return nil
}

// Role groups permissions under a unique name.
type Role struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:varchar(255)" json:"description"`
	Permissions PermissionData `gorm:"type:text" json:"permissions"`
	GuardName   string         `gorm:"type:varchar(50);not null;default:'web'" json:"guard_name"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.GuardName == "" {
		r.GuardName = DefaultGuard
	}
	return nil
}

// Permission is an entry of the permission catalog, e.g. "view projects".
type Permission struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	GuardName string    `gorm:"type:varchar(50);not null;default:'web'" json:"guard_name"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.GuardName == "" {
		p.GuardName = DefaultGuard
	}
	return nil
}

// RoleAssignment links a user to a role. The services keep one row per user.
type RoleAssignment struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	RoleID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"role_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"-"`
	Role      Role      `gorm:"foreignKey:RoleID;constraint:OnDelete:CASCADE;" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
