package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/models"
)

type Rotation struct {
	AccessTokenHash  string
	RefreshTokenHash string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

func (r *GormRepo) CreateSession(ctx context.Context, s *models.AuthSession) error {
	return translate(r.db(ctx).Create(s).Error, "session")
}

func (r *GormRepo) SessionByAccessHash(ctx context.Context, hash string) (*models.AuthSession, error) {
	var s models.AuthSession
	err := r.db(ctx).Preload("Citizen").
		Where("access_token_hash = ?", hash).
		First(&s).Error
	if err != nil {
		return nil, translate(err, "session")
	}
	return &s, nil
}

func (r *GormRepo) SessionByRefreshHash(ctx context.Context, hash string) (*models.AuthSession, error) {
	var s models.AuthSession
	err := r.db(ctx).
		Where("refresh_token_hash = ?", hash).
		First(&s).Error
	if err != nil {
		return nil, translate(err, "session")
	}
	return &s, nil
}

// RotateSession swaps both token hashes only while the stored refresh hash
// still equals expectRefreshHash. A false result means another caller
// rotated or revoked the session first.
func (r *GormRepo) RotateSession(ctx context.Context, id uuid.UUID, expectRefreshHash string, next Rotation) (bool, error) {
	res := r.db(ctx).Model(&models.AuthSession{}).
		Where("id = ? AND refresh_token_hash = ? AND is_revoked = ?", id, expectRefreshHash, false).
		Updates(map[string]any{
			"access_token_hash":  next.AccessTokenHash,
			"refresh_token_hash": next.RefreshTokenHash,
			"access_expires_at":  next.AccessExpiresAt,
			"refresh_expires_at": next.RefreshExpiresAt,
		})
	if res.Error != nil {
		return false, translate(res.Error, "session")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db(ctx).Model(&models.AuthSession{}).
		Where("id = ? AND is_revoked = ?", id, false).
		Updates(map[string]any{"is_revoked": true, "revoked_at": at}).Error
	return translate(err, "session")
}

func (r *GormRepo) SessionByID(ctx context.Context, id uuid.UUID) (*models.AuthSession, error) {
	var s models.AuthSession
	if err := r.db(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err, "session")
	}
	return &s, nil
}
