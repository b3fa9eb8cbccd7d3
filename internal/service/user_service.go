package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskhub/internal/model"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Role labels shown in user listings when no role name applies.
const (
	RoleLabelNone     = "No Role"
	RoleLabelNoSystem = "No Role System"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	Role                 string `json:"role" binding:"required"`
}

// UpdateUserRequest is a partial update; nil fields are left unchanged.
type UpdateUserRequest struct {
	Name                 *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email                *string `json:"email" binding:"omitempty,email,max=255"`
	Password             *string `json:"password" binding:"omitempty,min=8"`
	PasswordConfirmation *string `json:"password_confirmation"`
	Role                 *string `json:"role" binding:"omitempty,min=1"`
}

// UserListParams carries the query parameters of the user listing
type UserListParams struct {
	repository.ListOptions
	RoleFilter string
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	RoleID    *uuid.UUID `json:"role_id"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	ListUsers(ctx context.Context, params UserListParams) ([]UserResponse, int64, error)
	GetUser(ctx context.Context, id uuid.UUID) (*UserResponse, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	SeedDemoUsers(ctx context.Context) error
}

type userService struct {
	users  repository.UserRepository
	roles  repository.RoleRepository
	tasks  repository.TaskRepository
	tokens repository.TokenRepository
	tx     repository.TransactionManager
	access *RoleAccess
	logger *slog.Logger
}

// NewUserService returns a new instance of UserService
func NewUserService(users repository.UserRepository, roles repository.RoleRepository, tasks repository.TaskRepository, tokens repository.TokenRepository, tx repository.TransactionManager, access *RoleAccess, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{users: users, roles: roles, tasks: tasks, tokens: tokens, tx: tx, access: access, logger: logger}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User, role *model.Role, label string) *UserResponse {
	res := &UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      label,
		CreatedAt: user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if role != nil {
		id := role.ID
		res.Role = role.Name
		res.RoleID = &id
	}
	return res
}

func (s *userService) ListUsers(ctx context.Context, params UserListParams) ([]UserResponse, int64, error) {
	schema := rbac.SchemaPresent(ctx)

	filter := repository.UserFilter{ListOptions: params.ListOptions}
	if schema && params.RoleFilter != "" {
		filter.RoleName = params.RoleFilter
		filter.JoinRoles = true
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	roles := map[uuid.UUID]model.Role{}
	if schema && len(users) > 0 {
		ids := make([]uuid.UUID, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		if roles, err = s.roles.RolesForUsers(ctx, ids); err != nil {
			return nil, 0, fmt.Errorf("failed to fetch user roles: %w", err)
		}
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		if !schema {
			res = append(res, *mapToResponse(&users[i], nil, RoleLabelNoSystem))
			continue
		}
		if role, ok := roles[users[i].ID]; ok {
			res = append(res, *mapToResponse(&users[i], &role, ""))
		} else {
			res = append(res, *mapToResponse(&users[i], nil, RoleLabelNone))
		}
	}
	return res, total, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return s.describe(ctx, user), nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashed),
		Role:     req.Role,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if err := s.assignRole(txCtx, user.ID, req.Role); err != nil {
			return err
		}
		s.access.mirrorAssignment(txCtx, user.ID, req.Role)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User created", "user_id", user.ID, "role", req.Role)
	return s.describe(ctx, user), nil
}

func (s *userService) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user")
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}

	if req.Password != nil && *req.Password != "" {
		if req.PasswordConfirmation == nil || *req.PasswordConfirmation != *req.Password {
			return nil, fieldError("password", "The password confirmation does not match.")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, errors.New("failed to hash password")
		}
		user.Password = string(hashed)
	}

	roleChanged := req.Role != nil && *req.Role != user.Role
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if req.Role != nil && *req.Role != rbac.AdministratorRole {
			if err := s.ensureNotLastAdministrator(txCtx, user, "Cannot remove the Administrator role from the last administrator"); err != nil {
				return err
			}
		}
		if req.Role != nil {
			user.Role = *req.Role
			if err := s.assignRole(txCtx, user.ID, *req.Role); err != nil {
				return err
			}
			s.access.mirrorAssignment(txCtx, user.ID, *req.Role)
		}
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User updated", "user_id", user.ID, "role_changed", roleChanged)
	return s.describe(ctx, user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return notFound(err, "user")
	}

	schema := rbac.SchemaPresent(ctx)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureNotLastAdministrator(txCtx, user, "Cannot delete the last administrator"); err != nil {
			return err
		}
		if err := s.tasks.DeleteForUser(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user tasks: %w", err)
		}
		if schema {
			if err := s.roles.Unassign(txCtx, user.ID); err != nil {
				return fmt.Errorf("failed to remove role assignment: %w", err)
			}
		}
		if err := s.tokens.DeleteForUser(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke tokens: %w", err)
		}
		if err := s.users.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		s.access.forgetUser(txCtx, user.ID)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "User deleted", "user_id", user.ID)
	return nil
}

// SeedDemoUsers creates admin@example.com and user@example.com when missing.
func (s *userService) SeedDemoUsers(ctx context.Context) error {
	demo := []CreateUserRequest{
		{Name: "Admin User", Email: "admin@example.com", Password: "password", Role: rbac.AdministratorRole},
		{Name: "Regular User", Email: "user@example.com", Password: "password", Role: rbac.DefaultUserRole},
	}

	for _, d := range demo {
		_, err := s.users.GetByEmail(ctx, d.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up %s: %w", d.Email, err)
		}
		d.PasswordConfirmation = d.Password
		if _, err := s.CreateUser(ctx, d); err != nil {
			return fmt.Errorf("failed to seed %s: %w", d.Email, err)
		}
	}
	return nil
}

// describe renders a single user with the role label used by show/create/update.
func (s *userService) describe(ctx context.Context, user *model.User) *UserResponse {
	if !rbac.SchemaPresent(ctx) {
		label := user.Role
		if label == "" {
			label = RoleLabelNoSystem
		}
		return mapToResponse(user, nil, label)
	}
	role, err := s.roles.RoleForUser(ctx, user.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to get role for user", "user_id", user.ID, "error", err)
		return mapToResponse(user, nil, "Unknown")
	}
	return mapToResponse(user, role, RoleLabelNone)
}

func (s *userService) assignRole(ctx context.Context, userID uuid.UUID, roleName string) error {
	if err := s.access.assign(ctx, userID, roleName); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fieldError("role", "The selected role is invalid.")
		}
		return err
	}
	return nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil && existing.ID != self {
		return fieldError("email", "The email has already been taken.")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

// ensureNotLastAdministrator rejects changes that would leave no administrator.
func (s *userService) ensureNotLastAdministrator(ctx context.Context, user *model.User, msg string) error {
	admin, err := s.access.isAdministrator(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to check user roles: %w", err)
	}
	if !admin {
		return nil
	}
	n, err := s.access.administratorCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count administrators: %w", err)
	}
	if n <= 1 {
		return &ConflictError{Message: msg}
	}
	return nil
}
