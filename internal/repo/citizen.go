package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/civicdesk/civicdesk/internal/models"
)

// UpsertCitizen inserts c keyed on phone number. On conflict only the listed
// columns are overwritten. The stored row is returned either way.
func (r *GormRepo) UpsertCitizen(ctx context.Context, c *models.Citizen, updateColumns []string) (*models.Citizen, error) {
	conflict := clause.OnConflict{Columns: []clause.Column{{Name: "phone_number"}}}
	if len(updateColumns) == 0 {
		conflict.DoNothing = true
	} else {
		cols := append(append([]string{}, updateColumns...), "updated_at")
		conflict.DoUpdates = clause.AssignmentColumns(cols)
	}

	if err := r.db(ctx).Clauses(conflict).Create(c).Error; err != nil {
		return nil, translate(err, "citizen")
	}
	return r.CitizenByPhone(ctx, c.PhoneNumber)
}

func (r *GormRepo) CitizenByPhone(ctx context.Context, phone string) (*models.Citizen, error) {
	var c models.Citizen
	if err := r.db(ctx).Where("phone_number = ?", phone).First(&c).Error; err != nil {
		return nil, translate(err, "citizen")
	}
	return &c, nil
}

func (r *GormRepo) TouchCitizenLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db(ctx).Model(&models.Citizen{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
	return translate(err, "citizen")
}

func (r *GormRepo) ComplaintsByCitizen(ctx context.Context, citizenID uuid.UUID, limit int) ([]models.Complaint, error) {
	var out []models.Complaint
	err := r.db(ctx).
		Where("citizen_id = ?", citizenID).
		Order("created_at DESC").Order("complaint_number DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "complaints")
	}
	return out, nil
}
