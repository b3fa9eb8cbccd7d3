package repository

import (
	"context"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserFilter narrows a user listing. RoleName is matched against role
// assignments when JoinRoles is set, and against the stored column otherwise.
type UserFilter struct {
	ListOptions
	RoleName  string
	JoinRoles bool
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, filter UserFilter) ([]model.User, int64, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountByStoredRole(ctx context.Context, roleName string) (int64, error)
	LockByStoredRole(ctx context.Context, roleName string) error
	RenameStoredRole(ctx context.Context, oldName, newName string) error
	ClearStoredRole(ctx context.Context, roleName string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	q := GetDB(ctx, r.db).Model(&model.User{})
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where("LOWER(users.name) LIKE ? OR LOWER(users.email) LIKE ?", pattern, pattern)
	}
	if filter.RoleName != "" {
		if filter.JoinRoles {
			q = q.Where("users.id IN (?)",
				GetDB(ctx, r.db).Table("role_assignments").
					Select("role_assignments.user_id").
					Joins("JOIN roles ON roles.id = role_assignments.role_id").
					Where("roles.name = ?", filter.RoleName))
		} else {
			q = q.Where("users.role = ?", filter.RoleName)
		}
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = orderBy(q, filter.ListOptions, []string{"name", "email", "created_at"}, "created_at")
	if err := page(q, filter.ListOptions).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.User{}).Error
}

func (r *userRepository) CountByStoredRole(ctx context.Context, roleName string) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", roleName).Count(&n).Error
	return n, err
}

// LockByStoredRole takes row locks on every user holding roleName until the
// surrounding transaction ends. SQLite has no row locks and skips the clause.
func (r *userRepository) LockByStoredRole(ctx context.Context, roleName string) error {
	var ids []uuid.UUID
	return GetDB(ctx, r.db).Model(&model.User{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("role = ?", roleName).
		Pluck("id", &ids).Error
}

func (r *userRepository) RenameStoredRole(ctx context.Context, oldName, newName string) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", oldName).Update("role", newName).Error
}

func (r *userRepository) ClearStoredRole(ctx context.Context, roleName string) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", roleName).Update("role", "").Error
}
