package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/models"
)

// AppendEvent writes one audit row. Audit rows are never updated.
func (r *GormRepo) AppendEvent(ctx context.Context, e *models.ComplaintEvent) error {
	return translate(r.db(ctx).Create(e).Error, "complaint event")
}

func (r *GormRepo) EventsForComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintEvent, error) {
	var out []models.ComplaintEvent
	err := r.db(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "complaint events")
	}
	return out, nil
}

func (r *GormRepo) CountEvents(ctx context.Context, complaintID uuid.UUID, eventType string) (int64, error) {
	var n int64
	err := r.db(ctx).Model(&models.ComplaintEvent{}).
		Where("complaint_id = ? AND event_type = ?", complaintID, eventType).
		Count(&n).Error
	return n, translate(err, "complaint events")
}

func (r *GormRepo) CreateMedia(ctx context.Context, media []models.ComplaintMedia) error {
	if len(media) == 0 {
		return nil
	}
	return translate(r.db(ctx).Create(&media).Error, "complaint media")
}

func (r *GormRepo) MediaForComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintMedia, error) {
	var out []models.ComplaintMedia
	err := r.db(ctx).
		Where("complaint_id = ?", complaintID).
		Order("uploaded_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "complaint media")
	}
	return out, nil
}
