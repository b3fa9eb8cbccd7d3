package repository

import (
	"context"
	"time"

	"taskhub/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository tracks issued access tokens so they can be revoked.
type TokenRepository interface {
	Create(ctx context.Context, token *model.AccessToken) error
	GetActive(ctx context.Context, id uuid.UUID, now time.Time) (*model.AccessToken, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.AccessToken) error {
	return GetDB(ctx, r.db).Omit("User").Create(token).Error
}

func (r *tokenRepository) GetActive(ctx context.Context, id uuid.UUID, now time.Time) (*model.AccessToken, error) {
	var token model.AccessToken
	if err := GetDB(ctx, r.db).Where("id = ? AND expires_at > ?", id, now).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.AccessToken{}).Where("id = ?", id).Update("last_used_at", at).Error
}

func (r *tokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.AccessToken{}).Error
}

func (r *tokenRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.AccessToken{}).Error
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("expires_at <= ?", now).Delete(&model.AccessToken{})
	return res.RowsAffected, res.Error
}
