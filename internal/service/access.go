package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"taskhub/internal/model"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PolicyStore mirrors role and assignment changes into the enforcer.
// It is nil unless the RBAC backend is full.
type PolicyStore interface {
	SetRolePermissions(role string, permissions []string) error
	RenameRole(oldName, newName string, permissions []string) error
	RemoveRole(role string) error
	AssignRole(userID uuid.UUID, role string) error
	RemoveUser(userID uuid.UUID) error
}

// AuthUser is the user payload returned by register, login and profile.
type AuthUser struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Role        string             `json:"role"`
	Permissions rbac.PermissionSet `json:"permissions"`
}

// RoleAccess keeps the three places a user's role lives in step: the
// role_assignments row, the stored role column and the enforcer grouping.
type RoleAccess struct {
	users    repository.UserRepository
	roles    repository.RoleRepository
	policies PolicyStore
	resolver *rbac.Resolver
	logger   *slog.Logger
}

// NewRoleAccess wires the role helpers shared by the auth, user and role services.
// policies may be nil.
func NewRoleAccess(users repository.UserRepository, roles repository.RoleRepository, policies PolicyStore, resolver *rbac.Resolver, logger *slog.Logger) *RoleAccess {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleAccess{users: users, roles: roles, policies: policies, resolver: resolver, logger: logger}
}

// assign records roleName as the user's only role in the role tables.
// The caller updates the stored column. Returns ErrNotFound when the role
// tables are present but the role is not.
func (a *RoleAccess) assign(ctx context.Context, userID uuid.UUID, roleName string) error {
	if !rbac.SchemaPresent(ctx) {
		return nil
	}
	role, err := a.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("role %q %w", roleName, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch role: %w", err)
	}
	if err := a.roles.Assign(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// mirrorAssignment pushes the grouping to the enforcer once the surrounding
// transaction commits. The enforcer writes through the root DB, so it never
// sees rows a rollback would discard. Failures are logged, not returned.
func (a *RoleAccess) mirrorAssignment(ctx context.Context, userID uuid.UUID, roleName string) {
	if a.policies == nil {
		return
	}
	repository.AfterCommit(ctx, func() {
		if err := a.policies.AssignRole(userID, roleName); err != nil {
			a.logger.WarnContext(ctx, "Failed to mirror role assignment", "user_id", userID, "error", err)
		}
	})
}

// forgetUser drops every enforcer grouping for userID after commit.
func (a *RoleAccess) forgetUser(ctx context.Context, userID uuid.UUID) {
	if a.policies == nil {
		return
	}
	repository.AfterCommit(ctx, func() {
		if err := a.policies.RemoveUser(userID); err != nil {
			a.logger.WarnContext(ctx, "Failed to remove role groupings", "user_id", userID, "error", err)
		}
	})
}

// currentRole returns the user's assigned role, or nil when none is assigned
// or the role tables are missing.
func (a *RoleAccess) currentRole(ctx context.Context, userID uuid.UUID) (*model.Role, error) {
	if !rbac.SchemaPresent(ctx) {
		return nil, nil
	}
	return a.roles.RoleForUser(ctx, userID)
}

// profile builds the AuthUser payload. Role lookup failures degrade to no role.
func (a *RoleAccess) profile(ctx context.Context, user *model.User) *AuthUser {
	role, err := a.currentRole(ctx, user.ID)
	if err != nil {
		a.logger.WarnContext(ctx, "Role lookup failed, resolving without role", "user_id", user.ID, "error", err)
		role = nil
	}

	roleName := rbac.DefaultUserRole
	switch {
	case role != nil:
		roleName = role.Name
	case !rbac.SchemaPresent(ctx) && user.Role != "":
		roleName = user.Role
	}

	return &AuthUser{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        roleName,
		Permissions: a.resolver.Resolve(ctx, user, role),
	}
}

// isAdministrator reports whether the user currently holds the Administrator role.
func (a *RoleAccess) isAdministrator(ctx context.Context, user *model.User) (bool, error) {
	if !rbac.SchemaPresent(ctx) {
		return user.Role == rbac.AdministratorRole, nil
	}
	names, err := a.roles.RoleNamesForUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == rbac.AdministratorRole {
			return true, nil
		}
	}
	return false, nil
}

// administratorCount counts users holding the Administrator role. Inside a
// transaction the Administrator rows stay locked until it ends, so concurrent
// demotions are counted one after the other.
func (a *RoleAccess) administratorCount(ctx context.Context) (int64, error) {
	if err := a.users.LockByStoredRole(ctx, rbac.AdministratorRole); err != nil {
		return 0, err
	}
	if !rbac.SchemaPresent(ctx) {
		return a.users.CountByStoredRole(ctx, rbac.AdministratorRole)
	}
	role, err := a.roles.LockByName(ctx, rbac.AdministratorRole)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return a.roles.CountAssignments(ctx, role.ID)
}
