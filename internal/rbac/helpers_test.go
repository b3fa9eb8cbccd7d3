package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"taskhub/internal/config"
	"taskhub/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDB(t *testing.T, withRBAC bool) *gorm.DB {
	t.Helper()
	db, err := database.NewConnection(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "rbac.db"),
	}, true)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, withRBAC))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// stubChecker grants a fixed set of permissions, or fails every check when err is set.
type stubChecker struct {
	granted map[string]bool
	err     error
	calls   int
}

func (s *stubChecker) HasPermission(_ uuid.UUID, permission string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.granted[permission], nil
}

type stubRoles struct {
	names []string
	err   error
	panic bool
}

func (s stubRoles) RoleNamesForUser(context.Context, uuid.UUID) ([]string, error) {
	if s.panic {
		panic("lookup exploded")
	}
	return s.names, s.err
}

var errBackendDown = errors.New("backend down")

func withSchema(present bool) context.Context {
	return WithSchemaPresence(context.Background(), present)
}
