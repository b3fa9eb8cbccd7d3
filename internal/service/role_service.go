package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"taskhub/internal/model"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

// RoleRequest is used for both create and update. On update, nil fields are left unchanged.
type RoleRequest struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Permissions map[string]bool `json:"permissions"`
}

// ErrRoleSystemUnavailable is returned by role management when the role tables are missing.
var ErrRoleSystemUnavailable = &ConflictError{Message: "Role system is not available"}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context, opts repository.ListOptions) ([]model.Role, int64, error)
	GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error)
	CreateRole(ctx context.Context, req RoleRequest) (*model.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, req RoleRequest) (*model.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
	SyncPolicies(ctx context.Context) error
}

type roleService struct {
	roles    repository.RoleRepository
	users    repository.UserRepository
	tx       repository.TransactionManager
	policies PolicyStore
	logger   *slog.Logger
}

// NewRoleService builds the role service. policies may be nil.
func NewRoleService(roles repository.RoleRepository, users repository.UserRepository, tx repository.TransactionManager, policies PolicyStore, logger *slog.Logger) RoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &roleService{roles: roles, users: users, tx: tx, policies: policies, logger: logger}
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context, opts repository.ListOptions) ([]model.Role, int64, error) {
	if !rbac.SchemaPresent(ctx) {
		return nil, 0, ErrRoleSystemUnavailable
	}
	roles, total, err := s.roles.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch roles: %w", err)
	}
	return roles, total, nil
}

func (s *roleService) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	if !rbac.SchemaPresent(ctx) {
		return nil, ErrRoleSystemUnavailable
	}
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "role")
	}
	return role, nil
}

func (s *roleService) CreateRole(ctx context.Context, req RoleRequest) (*model.Role, error) {
	if !rbac.SchemaPresent(ctx) {
		return nil, ErrRoleSystemUnavailable
	}
	if req.Name == nil {
		return nil, fieldError("name", "The name field is required.")
	}
	if req.Permissions == nil {
		return nil, fieldError("permissions", "The permissions field is required.")
	}

	role := &model.Role{GuardName: model.DefaultGuard}
	if err := s.apply(ctx, role, req); err != nil {
		return nil, err
	}

	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	if err := s.mirrorPermissions(role.Name, req.Permissions); err != nil {
		s.logger.WarnContext(ctx, "Failed to mirror role policies", "role", role.Name, "error", err)
	}

	s.logger.InfoContext(ctx, "Role created", "role_id", role.ID, "role", role.Name)
	return role, nil
}

func (s *roleService) UpdateRole(ctx context.Context, id uuid.UUID, req RoleRequest) (*model.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	oldName := role.Name
	if oldName == rbac.AdministratorRole && req.Name != nil && strings.TrimSpace(*req.Name) != oldName {
		// Route guards check for this name.
		return nil, &ConflictError{Message: "Cannot rename the Administrator role"}
	}
	if err := s.apply(ctx, role, req); err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roles.Update(txCtx, role); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}
		if role.Name != oldName {
			if err := s.users.RenameStoredRole(txCtx, oldName, role.Name); err != nil {
				return fmt.Errorf("failed to rename stored roles: %w", err)
			}
		}
		if s.policies != nil && (role.Name != oldName || req.Permissions != nil) {
			repository.AfterCommit(txCtx, func() {
				granted, err := rbac.ParsePermissionData(role.Permissions)
				if err == nil {
					err = s.policies.RenameRole(oldName, role.Name, rbac.GrantedNames(granted))
				}
				if err != nil {
					s.logger.WarnContext(ctx, "Failed to mirror role policies", "role", role.Name, "error", err)
				}
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Role updated", "role_id", role.ID, "role", role.Name)
	return role, nil
}

func (s *roleService) DeleteRole(ctx context.Context, id uuid.UUID) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}

	if role.Name == rbac.AdministratorRole {
		n, err := s.roles.CountAssignments(ctx, role.ID)
		if err != nil {
			return fmt.Errorf("failed to count assignments: %w", err)
		}
		if n > 0 {
			return &ConflictError{Message: "Cannot delete the Administrator role while it is assigned to users"}
		}
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.ClearStoredRole(txCtx, role.Name); err != nil {
			return fmt.Errorf("failed to clear stored roles: %w", err)
		}
		if err := s.roles.Delete(txCtx, role.ID); err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		if s.policies != nil {
			repository.AfterCommit(txCtx, func() {
				if err := s.policies.RemoveRole(role.Name); err != nil {
					s.logger.WarnContext(ctx, "Failed to remove role policies", "role", role.Name, "error", err)
				}
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Role deleted", "role_id", role.ID, "role", role.Name)
	return nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	if !rbac.SchemaPresent(ctx) {
		return nil, ErrRoleSystemUnavailable
	}
	perms, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	return perms, nil
}

// SeedDefaultRolesAndPermissions creates the permission catalog and the two
// built-in roles. Existing roles are left as they are. Without the role
// tables there is nothing to seed.
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	if !rbac.SchemaPresent(ctx) {
		s.logger.InfoContext(ctx, "Role tables missing, skipping role seed")
		return nil
	}

	for _, name := range rbac.Catalog {
		if err := s.roles.EnsurePermission(ctx, name); err != nil {
			return fmt.Errorf("failed to seed permission %q: %w", name, err)
		}
	}

	defaults := []struct {
		name        string
		description string
		permissions []string
	}{
		{rbac.AdministratorRole, "Full access to every resource", rbac.Catalog},
		{rbac.DefaultUserRole, "Manages their own projects and tasks", rbac.DefaultUserPermissions},
	}

	for _, d := range defaults {
		_, err := s.roles.GetByName(ctx, d.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up role %q: %w", d.name, err)
		}

		granted := make(map[string]bool, len(d.permissions))
		for _, p := range d.permissions {
			granted[p] = true
		}
		data, err := model.NewPermissionData(granted)
		if err != nil {
			return err
		}
		role := &model.Role{Name: d.name, Description: d.description, Permissions: data, GuardName: model.DefaultGuard}
		if err := s.roles.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to seed role %q: %w", d.name, err)
		}
		s.logger.InfoContext(ctx, "Seeded role", "role", d.name)
	}
	return nil
}

// SyncPolicies rebuilds enforcer policies and groupings from the role tables.
// Roles whose stored permissions cannot be parsed are skipped.
func (s *roleService) SyncPolicies(ctx context.Context) error {
	if s.policies == nil || !rbac.SchemaPresent(ctx) {
		return nil
	}

	roles, _, err := s.roles.List(ctx, repository.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to fetch roles: %w", err)
	}

	for _, role := range roles {
		granted, err := rbac.ParsePermissionData(role.Permissions)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping role with malformed permissions", "role", role.Name, "error", err)
			continue
		}
		if err := s.policies.SetRolePermissions(role.Name, rbac.GrantedNames(granted)); err != nil {
			return err
		}

		members, err := s.roles.UserIDsForRole(ctx, role.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch members of role %q: %w", role.Name, err)
		}
		for _, userID := range members {
			if err := s.policies.AssignRole(userID, role.Name); err != nil {
				return err
			}
		}
	}

	s.logger.InfoContext(ctx, "RBAC policies synchronized", "roles", len(roles))
	return nil
}

// apply validates req and copies it onto role.
func (s *roleService) apply(ctx context.Context, role *model.Role, req RoleRequest) error {
	fields := errorBag{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		switch n := utf8.RuneCountInString(name); {
		case n < 3:
			fields.add("name", "The name must be at least 3 characters.")
		case n > 50:
			fields.add("name", "The name must not be greater than 50 characters.")
		default:
			existing, err := s.roles.GetByName(ctx, name)
			if err == nil && existing.ID != role.ID {
				fields.add("name", "The name has already been taken.")
			} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check role name: %w", err)
			}
		}
		role.Name = name
	}

	if req.Description != nil {
		if utf8.RuneCountInString(*req.Description) > 255 {
			fields.add("description", "The description must not be greater than 255 characters.")
		}
		role.Description = *req.Description
	}

	if req.Permissions != nil {
		if !anyGranted(req.Permissions) {
			fields.add("permissions", "At least one permission must be selected")
		} else {
			data, err := model.NewPermissionData(req.Permissions)
			if err != nil {
				return err
			}
			role.Permissions = data
		}
	}

	return fields.err()
}

func (s *roleService) mirrorPermissions(role string, perms map[string]bool) error {
	if s.policies == nil {
		return nil
	}
	return s.policies.SetRolePermissions(role, rbac.GrantedNames(perms))
}

func anyGranted(perms map[string]bool) bool {
	for _, v := range perms {
		if v {
			return true
		}
	}
	return false
}
