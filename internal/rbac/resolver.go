package rbac

import (
	"context"
	"log/slog"

	"taskhub/internal/model"

	"github.com/google/uuid"
)

// PermissionChecker answers single permission checks for a user.
type PermissionChecker interface {
	HasPermission(userID uuid.UUID, permission string) (bool, error)
}

type tier struct {
	name    string
	resolve func(ctx context.Context, user *model.User, role *model.Role) (PermissionSet, bool, error)
}

// Resolver computes the PermissionSet shown to the client for a user and
// their role. Tiers are tried in order; the first that produces a result wins,
// and a tier that fails is logged and skipped.
type Resolver struct {
	backend Backend
	checker PermissionChecker
	logger  *slog.Logger
	tiers   []tier
}

// NewResolver wires the tiers for backend. checker may be nil unless backend is BackendFull.
func NewResolver(backend Backend, checker PermissionChecker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{backend: backend, checker: checker, logger: logger}
	r.tiers = []tier{
		{name: "administrator", resolve: r.administrator},
		{name: "enforcer", resolve: r.enforced},
		{name: "raw", resolve: r.raw},
	}
	return r
}

// Resolve never fails: when no tier produces a result every key is false.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, role *model.Role) PermissionSet {
	roleName := ""
	if role != nil {
		roleName = role.Name
	}
	r.logger.DebugContext(ctx, "Resolving permissions", "role", roleName, "backend", r.backend)

	for _, t := range r.tiers {
		set, ok, err := t.resolve(ctx, user, role)
		if err != nil {
			r.logger.WarnContext(ctx, "Permission tier failed", "tier", t.name, "role", roleName, "error", err)
			continue
		}
		if ok {
			r.logger.DebugContext(ctx, "Permissions resolved", "tier", t.name, "role", roleName, "permissions", set)
			return set
		}
	}

	r.logger.DebugContext(ctx, "No permissions resolved, denying all", "role", roleName)
	return PermissionSet{}
}

func (r *Resolver) administrator(_ context.Context, _ *model.User, role *model.Role) (PermissionSet, bool, error) {
	if role != nil && role.Name == AdministratorRole {
		return AllGranted(), true, nil
	}
	return PermissionSet{}, false, nil
}

func (r *Resolver) enforced(ctx context.Context, user *model.User, _ *model.Role) (PermissionSet, bool, error) {
	if r.backend != BackendFull || r.checker == nil || user == nil || !SchemaPresent(ctx) {
		return PermissionSet{}, false, nil
	}
	set, err := buildSet(func(p string) (bool, error) {
		return r.checker.HasPermission(user.ID, p)
	})
	if err != nil {
		return PermissionSet{}, false, err
	}
	return set, true, nil
}

func (r *Resolver) raw(_ context.Context, _ *model.User, role *model.Role) (PermissionSet, bool, error) {
	if role == nil {
		return PermissionSet{}, false, nil
	}
	granted, err := ParsePermissionData(role.Permissions)
	if err != nil {
		return PermissionSet{}, false, err
	}
	set, _ := buildSet(func(p string) (bool, error) {
		return granted[p], nil
	})
	return set, true, nil
}
