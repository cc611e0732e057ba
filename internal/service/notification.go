package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

var validDeliveryStatuses = map[string]bool{
	models.DeliveryQueued:    true,
	models.DeliverySent:      true,
	models.DeliveryDelivered: true,
	models.DeliveryFailed:    true,
}

// NotificationService keeps the record of messages sent about complaints.
// It never talks to a messaging provider.
type NotificationService struct {
	Repo *repo.GormRepo
	Now  func() time.Time
}

type NotificationInput struct {
	ComplaintID uuid.UUID
	Channel     string
	TemplateKey *string
}

type DeliveryUpdate struct {
	DeliveryStatus    string
	ProviderMessageID *string
	ErrorMessage      *string
}

func nullable(p *string) any {
	if p = trimmed(p); p == nil {
		return nil
	}
	return *p
}

func (s *NotificationService) Queue(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	channel := strings.ToLower(strings.TrimSpace(in.Channel))
	if in.ComplaintID == uuid.Nil || channel == "" {
		return nil, apperr.New(apperr.InvalidInput, "complaint_id and channel are required")
	}
	if !validChannels[channel] {
		return nil, apperr.New(apperr.InvalidInput, "invalid notification channel")
	}
	if _, err := s.Repo.ComplaintByID(ctx, in.ComplaintID); err != nil {
		return nil, err
	}

	n := &models.Notification{
		ComplaintID:    in.ComplaintID,
		Channel:        channel,
		TemplateKey:    trimmed(in.TemplateKey),
		DeliveryStatus: models.DeliveryQueued,
	}
	if err := s.Repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("notification_queued",
		"svc", "notification.queue", "notification_id", n.ID, "complaint_id", n.ComplaintID, "channel", channel)
	return n, nil
}

func (s *NotificationService) ListForComplaint(ctx context.Context, complaintID uuid.UUID) ([]models.Notification, error) {
	if complaintID == uuid.Nil {
		return nil, apperr.New(apperr.InvalidInput, "complaint_id is required")
	}
	return s.Repo.NotificationsForComplaint(ctx, complaintID)
}

// MarkStatus records a delivery report. Sent and delivered reports stamp
// sent_at; provider id and error are replaced by what the report carries.
func (s *NotificationService) MarkStatus(ctx context.Context, id uuid.UUID, in DeliveryUpdate) (*models.Notification, error) {
	status := strings.ToLower(strings.TrimSpace(in.DeliveryStatus))
	if id == uuid.Nil || status == "" {
		return nil, apperr.New(apperr.InvalidInput, "notification_id and delivery_status are required")
	}
	if !validDeliveryStatuses[status] {
		return nil, apperr.New(apperr.InvalidInput, "invalid delivery_status")
	}

	updates := map[string]any{
		"delivery_status":     status,
		"provider_message_id": nullable(in.ProviderMessageID),
		"error_message":       nullable(in.ErrorMessage),
	}
	if status == models.DeliverySent || status == models.DeliveryDelivered {
		updates["sent_at"] = clock(s.Now)
	}
	n, err := s.Repo.UpdateNotification(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("notification_status_updated",
		"svc", "notification.mark_status", "notification_id", id, "status", status)
	return n, nil
}
