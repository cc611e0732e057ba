package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/civicdesk/civicdesk/internal/models"
)

func (r *GormRepo) ExpirePendingChallenges(ctx context.Context, phone string) error {
	err := r.db(ctx).Model(&models.OTPChallenge{}).
		Where("phone_number = ? AND status = ?", phone, models.OTPPending).
		Update("status", models.OTPExpired).Error
	return translate(err, "otp challenge")
}

func (r *GormRepo) CreateChallenge(ctx context.Context, ch *models.OTPChallenge) error {
	return translate(r.db(ctx).Create(ch).Error, "otp challenge")
}

func (r *GormRepo) LatestPendingChallenge(ctx context.Context, phone string) (*models.OTPChallenge, error) {
	var ch models.OTPChallenge
	err := r.db(ctx).
		Where("phone_number = ? AND status = ?", phone, models.OTPPending).
		Order("created_at DESC").
		First(&ch).Error
	if err != nil {
		return nil, translate(err, "pending otp challenge")
	}
	return &ch, nil
}

// SetPendingChallengeStatus moves a still-pending challenge to status and
// reports whether this call made the change.
func (r *GormRepo) SetPendingChallengeStatus(ctx context.Context, id uuid.UUID, status string, verifiedAt *time.Time) (bool, error) {
	updates := map[string]any{"status": status}
	if verifiedAt != nil {
		updates["verified_at"] = *verifiedAt
	}
	res := r.db(ctx).Model(&models.OTPChallenge{}).
		Where("id = ? AND status = ?", id, models.OTPPending).
		Updates(updates)
	if res.Error != nil {
		return false, translate(res.Error, "otp challenge")
	}
	return res.RowsAffected == 1, nil
}

// ClaimChallengeAttempt spends one verification attempt on a pending
// challenge. It reports false once max attempts are used up or the
// challenge is no longer pending.
func (r *GormRepo) ClaimChallengeAttempt(ctx context.Context, id uuid.UUID, max int) (bool, error) {
	res := r.db(ctx).Model(&models.OTPChallenge{}).
		Where("id = ? AND status = ? AND attempt_count < ?", id, models.OTPPending, max).
		UpdateColumn("attempt_count", gorm.Expr("attempt_count + 1"))
	if res.Error != nil {
		return false, translate(res.Error, "otp challenge")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) ChallengeByID(ctx context.Context, id uuid.UUID) (*models.OTPChallenge, error) {
	var ch models.OTPChallenge
	if err := r.db(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, translate(err, "otp challenge")
	}
	return &ch, nil
}

func (r *GormRepo) CountPendingChallenges(ctx context.Context, phone string) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&models.OTPChallenge{}).
		Where("phone_number = ? AND status = ?", phone, models.OTPPending).
		Count(&n).Error
	return n, translate(err, "otp challenge")
}
