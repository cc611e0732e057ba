package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/models"
)

// DeactivateAssignments clears the active flag on every active assignment
// of a complaint and returns how many rows changed.
func (r *GormRepo) DeactivateAssignments(ctx context.Context, complaintID uuid.UUID) (int64, error) {
	res := r.db(ctx).Model(&models.Assignment{}).
		Where("complaint_id = ? AND is_active = ?", complaintID, true).
		Update("is_active", false)
	if res.Error != nil {
		return 0, translate(res.Error, "assignment")
	}
	return res.RowsAffected, nil
}

// DeactivateAssignment reports whether the assignment was active before
// this call.
func (r *GormRepo) DeactivateAssignment(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db(ctx).Model(&models.Assignment{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, translate(res.Error, "assignment")
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	return translate(r.db(ctx).Create(a).Error, "assignment")
}

func (r *GormRepo) AssignmentByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	if err := r.db(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err, "assignment")
	}
	return &a, nil
}

// ActiveAssignment returns the active assignment or nil.
func (r *GormRepo) ActiveAssignment(ctx context.Context, complaintID uuid.UUID) (*models.Assignment, error) {
	var out []models.Assignment
	err := r.db(ctx).
		Where("complaint_id = ? AND is_active = ?", complaintID, true).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "assignment")
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *GormRepo) CountActiveAssignments(ctx context.Context, complaintID uuid.UUID) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&models.Assignment{}).
		Where("complaint_id = ? AND is_active = ?", complaintID, true).
		Count(&n).Error
	return n, translate(err, "assignment")
}
