package database

import (
	"path/filepath"
	"testing"

	"taskhub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewConnection(config.DatabaseConfig{Driver: "oracle"}, false)
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	tests := []struct {
		name     string
		withRBAC bool
	}{
		{"with rbac schema", true},
		{"without rbac schema", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewConnection(config.DatabaseConfig{
				Driver: "sqlite",
				DSN:    filepath.Join(t.TempDir(), "test.db"),
			}, true)
			require.NoError(t, err)

			require.NoError(t, Migrate(db, tt.withRBAC))

			m := db.Migrator()
			for _, table := range []string{"users", "access_tokens", "projects", "categories", "tasks", "audit_logs", "jobs"} {
				assert.True(t, m.HasTable(table), table)
			}
			for _, table := range []string{"roles", "permissions", "role_assignments"} {
				assert.Equal(t, tt.withRBAC, m.HasTable(table), table)
			}
		})
	}
}
