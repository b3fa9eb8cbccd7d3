package rbac

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// SchemaTables are the tables the role/permission subsystem needs.
var SchemaTables = []string{"roles", "permissions", "role_assignments"}

const defaultProbeTimeout = 2 * time.Second

// SchemaProber checks whether the RBAC tables exist. It only introspects the
// catalog and never returns an error: every failure reads as "absent".
type SchemaProber struct {
	db      *gorm.DB
	timeout time.Duration
	tables  []string
	logger  *slog.Logger
}

// NewSchemaProber builds a prober bounded by timeout (2s when zero).
func NewSchemaProber(db *gorm.DB, timeout time.Duration, logger *slog.Logger) *SchemaProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaProber{db: db, timeout: timeout, tables: SchemaTables, logger: logger}
}

// Present reports whether every RBAC table exists and the database answered in time.
func (p *SchemaProber) Present(ctx context.Context) (present bool) {
	if p == nil || p.db == nil {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("RBAC schema probe panicked", "panic", r)
			present = false
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	m := p.db.WithContext(ctx).Migrator()
	for _, table := range p.tables {
		if !m.HasTable(table) {
			p.logger.Debug("RBAC schema incomplete", "missing_table", table)
			return false
		}
	}
	if err := ctx.Err(); err != nil {
		p.logger.Warn("RBAC schema probe timed out", "error", err)
		return false
	}
	return true
}
