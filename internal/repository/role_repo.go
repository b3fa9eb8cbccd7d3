package repository

import (
	"context"
	"errors"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleRepository covers roles, the permission catalog and user ↔ role assignments.
type RoleRepository interface {
	Create(ctx context.Context, role *model.Role) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Role, error)
	GetByName(ctx context.Context, name string) (*model.Role, error)
	LockByName(ctx context.Context, name string) (*model.Role, error)
	List(ctx context.Context, opts ListOptions) ([]model.Role, int64, error)
	Update(ctx context.Context, role *model.Role) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListPermissions(ctx context.Context) ([]model.Permission, error)
	EnsurePermission(ctx context.Context, name string) error

	Assign(ctx context.Context, userID, roleID uuid.UUID) error
	Unassign(ctx context.Context, userID uuid.UUID) error
	RoleForUser(ctx context.Context, userID uuid.UUID) (*model.Role, error)
	RolesForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.Role, error)
	RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	CountAssignments(ctx context.Context, roleID uuid.UUID) (int64, error)
	UserIDsForRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error)
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Create(role).Error
}

func (r *roleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).First(&role, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

// LockByName is GetByName holding a row lock for the rest of the transaction.
func (r *roleRepository) LockByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&role, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, opts ListOptions) ([]model.Role, int64, error) {
	var roles []model.Role
	var total int64

	q := GetDB(ctx, r.db).Model(&model.Role{})
	if opts.Search != "" {
		pattern := likePattern(opts.Search)
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = orderBy(q, opts, []string{"name", "created_at", "updated_at"}, "name")
	if err := page(q, opts).Find(&roles).Error; err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func (r *roleRepository) Update(ctx context.Context, role *model.Role) error {
	return GetDB(ctx, r.db).Save(role).Error
}

// Delete removes the role and its assignments.
func (r *roleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("role_id = ?", id).Delete(&model.RoleAssignment{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Role{}).Error
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("name ASC").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *roleRepository) EnsurePermission(ctx context.Context, name string) error {
	perm := model.Permission{Name: name, GuardName: model.DefaultGuard}
	return GetDB(ctx, r.db).Where(model.Permission{Name: name}).FirstOrCreate(&perm).Error
}

// Assign replaces any existing assignment of the user with roleID.
func (r *roleRepository) Assign(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := r.Unassign(ctx, userID); err != nil {
		return err
	}
	return GetDB(ctx, r.db).Create(&model.RoleAssignment{UserID: userID, RoleID: roleID}).Error
}

func (r *roleRepository) Unassign(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.RoleAssignment{}).Error
}

// RoleForUser returns the user's role, or nil when none is assigned.
func (r *roleRepository) RoleForUser(ctx context.Context, userID uuid.UUID) (*model.Role, error) {
	var a model.RoleAssignment
	err := GetDB(ctx, r.db).Preload("Role").Where("user_id = ?", userID).Order("created_at ASC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a.Role, nil
}

func (r *roleRepository) RolesForUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]model.Role, error) {
	out := make(map[uuid.UUID]model.Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var assignments []model.RoleAssignment
	if err := GetDB(ctx, r.db).Preload("Role").Where("user_id IN ?", userIDs).Order("created_at ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if _, seen := out[a.UserID]; !seen {
			out[a.UserID] = a.Role
		}
	}
	return out, nil
}

func (r *roleRepository) RoleNamesForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var names []string
	err := GetDB(ctx, r.db).Table("role_assignments").
		Joins("JOIN roles ON roles.id = role_assignments.role_id").
		Where("role_assignments.user_id = ?", userID).
		Pluck("roles.name", &names).Error
	return names, err
}

func (r *roleRepository) CountAssignments(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.RoleAssignment{}).Where("role_id = ?", roleID).Count(&n).Error
	return n, err
}

func (r *roleRepository) UserIDsForRole(ctx context.Context, roleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.RoleAssignment{}).Where("role_id = ?", roleID).Pluck("user_id", &ids).Error
	return ids, err
}
