package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

// AttachMedia records metadata for a file already uploaded to object
// storage against an existing complaint.
func (s *ComplaintService) AttachMedia(ctx context.Context, complaintID uuid.UUID, in MediaInput, actor Actor) (*models.ComplaintMedia, error) {
	if complaintID == uuid.Nil {
		return nil, apperr.New(apperr.InvalidInput, "complaint_id is required")
	}
	row, err := validateMedia(in)
	if err != nil {
		return nil, err
	}
	actor = actor.orSystem().withDefaultNote("Media attached")

	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.ComplaintByID(ctx, complaintID); err != nil {
			return err
		}
		row.ComplaintID = complaintID
		created := []models.ComplaintMedia{row}
		if err := tx.CreateMedia(ctx, created); err != nil {
			return err
		}
		row = created[0]
		return tx.AppendEvent(ctx, auditRow(complaintID, models.EventMediaAttached, nil,
			models.Snapshot{"media_type": row.MediaType, "storage_path": row.StoragePath}, actor))
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("media_attached",
		"svc", "complaint.attach_media", "complaint_id", complaintID, "media_type", row.MediaType)
	return &row, nil
}

// ListMedia returns the media of a visible complaint, newest first.
func (s *ComplaintService) ListMedia(ctx context.Context, complaintID uuid.UUID) ([]models.ComplaintMedia, error) {
	if _, err := s.Repo.ComplaintByID(ctx, complaintID); err != nil {
		return nil, err
	}
	return s.Repo.MediaForComplaint(ctx, complaintID)
}
