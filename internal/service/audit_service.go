package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"taskhub/internal/model"
	"taskhub/internal/repository"

	"github.com/google/uuid"
)

type clientIPKey struct{}

// WithClientIP stores the caller's address for audit entries written under ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

type AuditLogResponse struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	UserName  string                 `json:"user_name"`
	Event     string                 `json:"event"`
	OldValues map[string]interface{} `json:"old_values"`
	NewValues map[string]interface{} `json:"new_values"`
	IPAddress string                 `json:"ip_address,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

type AuditService interface {
	Record(ctx context.Context, actor *uuid.UUID, event, auditableType string, auditableID uuid.UUID, oldValues, newValues map[string]interface{})
	History(ctx context.Context, auditableType string, auditableID uuid.UUID) ([]AuditLogResponse, error)
	List(ctx context.Context, filter repository.AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, logger *slog.Logger) AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &auditService{repo: repo, logger: logger}
}

// Record writes an audit entry. Failures are logged and never fail the caller.
// For updates only the changed keys are kept.
func (s *auditService) Record(ctx context.Context, actor *uuid.UUID, event, auditableType string, auditableID uuid.UUID, oldValues, newValues map[string]interface{}) {
	if event == model.AuditUpdated {
		oldValues, newValues = changedValues(oldValues, newValues)
		if len(newValues) == 0 {
			return
		}
	}

	entry := &model.AuditLog{
		UserID:        actor,
		Event:         event,
		AuditableType: auditableType,
		AuditableID:   auditableID,
		OldValues:     oldValues,
		NewValues:     newValues,
		IPAddress:     clientIP(ctx),
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "Failed to write audit log", "type", auditableType, "id", auditableID, "error", err)
	}
}

// History returns the audit trail of one record, newest first.
func (s *auditService) History(ctx context.Context, auditableType string, auditableID uuid.UUID) ([]AuditLogResponse, error) {
	logs, err := s.repo.ListFor(ctx, auditableType, auditableID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	return toAuditResponses(logs), nil
}

// List returns a page of audit entries across every record.
func (s *auditService) List(ctx context.Context, filter repository.AuditFilter) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return toAuditResponses(logs), total, nil
}

func toAuditResponses(logs []model.AuditLog) []AuditLogResponse {
	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userName := "System"
		userID := ""
		if l.User != nil {
			userName = l.User.Name
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:        l.ID.String(),
			UserID:    userID,
			UserName:  userName,
			Event:     l.Event,
			OldValues: l.OldValues,
			NewValues: l.NewValues,
			IPAddress: l.IPAddress,
			CreatedAt: l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return res
}

// snapshot flattens a record into its JSON field map.
func snapshot(v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

var auditIgnored = map[string]bool{"created_at": true, "updated_at": true}

func changedValues(oldValues, newValues map[string]interface{}) (map[string]interface{}, map[string]interface{}) {
	before := map[string]interface{}{}
	after := map[string]interface{}{}
	for k, nv := range newValues {
		if auditIgnored[k] {
			continue
		}
		ov, ok := oldValues[k]
		if ok && reflect.DeepEqual(ov, nv) {
			continue
		}
		before[k] = ov
		after[k] = nv
	}
	return before, after
}
