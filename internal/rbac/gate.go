package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"taskhub/internal/model"

	"github.com/google/uuid"
)

// RoleLookup reads a user's assigned role names from the role tables.
type RoleLookup interface {
	RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// Gate decides whether an authenticated caller may reach a route. It holds no
// per-request state; the schema flag comes from the request context.
type Gate struct {
	backend Backend
	checker PermissionChecker
	roles   RoleLookup
	logger  *slog.Logger
}

func NewGate(backend Backend, checker PermissionChecker, roles RoleLookup, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{backend: backend, checker: checker, roles: roles, logger: logger}
}

// RequireAnyRole passes when the caller holds one of roles. With the role
// tables present the assignments decide; otherwise the user's stored role name.
func (g *Gate) RequireAnyRole(ctx context.Context, user *model.User, roles []string) (err error) {
	if user == nil {
		return notLoggedIn(roles)
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "Role check panicked", "user_id", user.ID, "panic", r)
			err = missingRole(roles)
		}
	}()

	held, err := g.heldRoles(ctx, user)
	if err != nil {
		g.logger.WarnContext(ctx, "Role check failed, denying", "user_id", user.ID, "error", err)
		return missingRole(roles)
	}

	for _, h := range held {
		for _, want := range roles {
			if h == want {
				return nil
			}
		}
	}

	g.logger.DebugContext(ctx, "Role check denied", "user_id", user.ID, "held", held, "required", roles)
	return missingRole(roles)
}

func (g *Gate) heldRoles(ctx context.Context, user *model.User) ([]string, error) {
	if !SchemaPresent(ctx) {
		if user.Role == "" {
			return nil, nil
		}
		return []string{user.Role}, nil
	}
	if g.roles == nil {
		return nil, fmt.Errorf("role lookup not configured")
	}
	return g.roles.RoleNamesForUser(ctx, user.ID)
}

// RequirePermission passes when the enforcer grants the caller at least one
// of perms. There is no fallback: without the full backend every caller is denied.
func (g *Gate) RequirePermission(ctx context.Context, user *model.User, perms []string) (err error) {
	if user == nil {
		return notLoggedIn(perms)
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.ErrorContext(ctx, "Permission check panicked", "user_id", user.ID, "panic", r)
			err = missingPermission(perms)
		}
	}()

	if g.backend != BackendFull || g.checker == nil || !SchemaPresent(ctx) {
		g.logger.WarnContext(ctx, "Permission check unavailable, denying", "backend", g.backend, "schema_present", SchemaPresent(ctx))
		return missingPermission(perms)
	}

	for _, p := range perms {
		ok, err := g.checker.HasPermission(user.ID, p)
		if err != nil {
			g.logger.WarnContext(ctx, "Permission check failed, denying", "user_id", user.ID, "permission", p, "error", err)
			return missingPermission(perms)
		}
		if ok {
			return nil
		}
	}
	return missingPermission(perms)
}
