package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskhub/internal/config"
	"taskhub/internal/model"
	"taskhub/internal/rbac"
	"taskhub/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidToken is returned when a bearer token is malformed, expired or revoked.
var ErrInvalidToken = errors.New("invalid or expired token")

// DTOs
type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User  *AuthUser `json:"user"`
	Token string    `json:"token"`
	// ExpiresAt is used by the handler for the cookie lifetime.
	ExpiresAt time.Time `json:"-"`
}

// AuthService handles registration, login and token lifecycle
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, tokenID uuid.UUID) error
	Profile(ctx context.Context, user *model.User) *AuthUser
	Authenticate(ctx context.Context, tokenString string) (*model.User, *model.AccessToken, error)
}

type authService struct {
	users  repository.UserRepository
	tokens repository.TokenRepository
	tx     repository.TransactionManager
	access *RoleAccess
	cfg    config.AuthConfig
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens repository.TokenRepository, tx repository.TransactionManager, access *RoleAccess, cfg config.AuthConfig, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{users: users, tokens: tokens, tx: tx, access: access, cfg: cfg, logger: logger}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fieldError("email", "The email has already been taken.")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashed),
		Role:     rbac.DefaultUserRole,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		// A missing "User" role leaves the account unassigned rather than failing registration.
		if err := s.access.assign(txCtx, user.ID, rbac.DefaultUserRole); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		s.access.mirrorAssignment(txCtx, user.ID, rbac.DefaultUserRole)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User registered", "user_id", user.ID)
	return s.respond(ctx, user)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.ErrorContext(ctx, "Login lookup failed", "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.respond(ctx, user)
}

func (s *authService) Logout(ctx context.Context, tokenID uuid.UUID) error {
	if err := s.tokens.Delete(ctx, tokenID); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *authService) Profile(ctx context.Context, user *model.User) *AuthUser {
	return s.access.profile(ctx, user)
}

// Authenticate validates the JWT signature and expiry, then checks the token
// has not been revoked and loads its owner.
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*model.User, *model.AccessToken, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	tokenID, err := uuid.Parse(jti)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	now := time.Now().UTC()
	token, err := s.tokens.GetActive(ctx, tokenID, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token.UserID != userID {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.tokens.Touch(ctx, token.ID, now); err != nil {
		s.logger.WarnContext(ctx, "Failed to record token use", "token_id", token.ID, "error", err)
	}
	return user, token, nil
}

func (s *authService) respond(ctx context.Context, user *model.User) (*AuthResponse, error) {
	tokenString, expiresAt, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:      s.access.profile(ctx, user),
		Token:     tokenString,
		ExpiresAt: expiresAt,
	}, nil
}

// issueToken records a new access token row and signs a JWT carrying its id.
func (s *authService) issueToken(ctx context.Context, user *model.User) (string, time.Time, error) {
	now := time.Now().UTC()
	record := &model.AccessToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      "api-token",
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID.String(),
		"jti": record.ID.String(),
		"iat": now.Unix(),
		"exp": record.ExpiresAt.Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, errors.New("failed to generate token")
	}
	return tokenString, record.ExpiresAt, nil
}
