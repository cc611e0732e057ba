package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/models"
)

func (r *GormRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	return translate(r.db(ctx).Create(n).Error, "notification")
}

func (r *GormRepo) NotificationByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := r.db(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, translate(err, "notification")
	}
	return &n, nil
}

func (r *GormRepo) NotificationsForComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.Notification, error) {
	var out []models.Notification
	err := r.db(ctx).
		Where("complaint_id = ?", complaintID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "notifications")
	}
	return out, nil
}

// UpdateNotification applies updates and returns the stored row.
func (r *GormRepo) UpdateNotification(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Notification, error) {
	res := r.db(ctx).Model(&models.Notification{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error, "notification")
	}
	return r.NotificationByID(ctx, id)
}
