package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/models"
)

func (r *GormRepo) CreateAIOutput(ctx context.Context, o *models.AIOutput) error {
	return translate(r.db(ctx).Create(o).Error, "ai output")
}

// LatestAIOutput returns the newest output for a complaint, or nil when
// there is none.
func (r *GormRepo) LatestAIOutput(ctx context.Context, complaintID uuid.UUID) (*models.AIOutput, error) {
	var out []models.AIOutput
	err := r.db(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "ai output")
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *GormRepo) MarkAIOutputOverridden(ctx context.Context, id uuid.UUID) error {
	err := r.db(ctx).Model(&models.AIOutput{}).
		Where("id = ?", id).
		Update("overridden_by_human", true).Error
	return translate(err, "ai output")
}

func (r *GormRepo) AIOutputsForComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.AIOutput, error) {
	var out []models.AIOutput
	err := r.db(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "ai outputs")
	}
	return out, nil
}
