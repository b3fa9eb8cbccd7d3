package repository

import (
	"context"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditFilter narrows the audit log listing.
type AuditFilter struct {
	ListOptions
	AuditableType string
	Event         string
	UserID        *uuid.UUID
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	ListFor(ctx context.Context, auditableType string, auditableID uuid.UUID) ([]model.AuditLog, error)
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Omit("User").Create(entry).Error
}

// ListFor returns the history of one record, newest first.
func (r *auditRepository) ListFor(ctx context.Context, auditableType string, auditableID uuid.UUID) ([]model.AuditLog, error) {
	var logs []model.AuditLog
	err := GetDB(ctx, r.db).Preload("User").
		Where("auditable_type = ? AND auditable_id = ?", auditableType, auditableID).
		Order("created_at desc").
		Find(&logs).Error
	return logs, err
}

// List returns a page of audit entries across all records, newest first.
func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	q := GetDB(ctx, r.db).Model(&model.AuditLog{})
	if filter.AuditableType != "" {
		q = q.Where("auditable_type = ?", filter.AuditableType)
	}
	if filter.Event != "" {
		q = q.Where("event = ?", filter.Event)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := page(q.Order("created_at desc"), filter.ListOptions).Preload("User").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
