package rbac

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelConf string

// Enforcer is the full-capability permission backend. Policies are stored in
// the casbin_rule table: "p, <role>, <permission>" and "g, <user id>, <role>".
type Enforcer struct {
	e      *casbin.SyncedEnforcer
	logger *slog.Logger
}

// NewEnforcer loads the policy model and every stored rule.
func NewEnforcer(db *gorm.DB, logger *slog.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := casbinmodel.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	logger.Info("RBAC enforcer initialized")
	return &Enforcer{e: e, logger: logger}, nil
}

// HasPermission reports whether any role of the user grants permission.
func (en *Enforcer) HasPermission(userID uuid.UUID, permission string) (bool, error) {
	return en.e.Enforce(userID.String(), permission)
}

// RolesForUser returns the role names the user is grouped into.
func (en *Enforcer) RolesForUser(userID uuid.UUID) ([]string, error) {
	return en.e.GetRolesForUser(userID.String())
}

// SetRolePermissions replaces the permission policies of role.
func (en *Enforcer) SetRolePermissions(role string, permissions []string) error {
	if _, err := en.e.RemoveFilteredPolicy(0, role); err != nil {
		return fmt.Errorf("failed to clear policies for role %q: %w", role, err)
	}
	if len(permissions) == 0 {
		return nil
	}

	rules := make([][]string, 0, len(permissions))
	for _, p := range permissions {
		rules = append(rules, []string{role, p})
	}
	if _, err := en.e.AddPolicies(rules); err != nil {
		return fmt.Errorf("failed to add policies for role %q: %w", role, err)
	}
	return nil
}

// RenameRole moves policies and groupings from oldName to newName.
func (en *Enforcer) RenameRole(oldName, newName string, permissions []string) error {
	if oldName == newName {
		return en.SetRolePermissions(newName, permissions)
	}

	members, err := en.e.GetUsersForRole(oldName)
	if err != nil {
		return fmt.Errorf("failed to list members of role %q: %w", oldName, err)
	}
	if err := en.RemoveRole(oldName); err != nil {
		return err
	}
	if err := en.SetRolePermissions(newName, permissions); err != nil {
		return err
	}
	for _, member := range members {
		if _, err := en.e.AddGroupingPolicy(member, newName); err != nil {
			return fmt.Errorf("failed to regroup %s into role %q: %w", member, newName, err)
		}
	}
	return nil
}

// RemoveRole drops every policy and grouping that mentions role.
func (en *Enforcer) RemoveRole(role string) error {
	if _, err := en.e.RemoveFilteredPolicy(0, role); err != nil {
		return fmt.Errorf("failed to remove policies for role %q: %w", role, err)
	}
	if _, err := en.e.RemoveFilteredGroupingPolicy(1, role); err != nil {
		return fmt.Errorf("failed to remove groupings for role %q: %w", role, err)
	}
	return nil
}

// AssignRole makes role the user's only role.
func (en *Enforcer) AssignRole(userID uuid.UUID, role string) error {
	if err := en.RemoveUser(userID); err != nil {
		return err
	}
	if _, err := en.e.AddGroupingPolicy(userID.String(), role); err != nil {
		return fmt.Errorf("failed to assign role %q: %w", role, err)
	}
	return nil
}

// RemoveUser drops every grouping of the user.
func (en *Enforcer) RemoveUser(userID uuid.UUID) error {
	if _, err := en.e.RemoveFilteredGroupingPolicy(0, userID.String()); err != nil {
		return fmt.Errorf("failed to remove role groupings for user %s: %w", userID, err)
	}
	return nil
}
