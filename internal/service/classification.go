package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

type ClassificationInput struct {
	ComplaintID uuid.UUID
	Label       string
	Confidence  *float64
	ModelName   string
}

func validateLabel(id uuid.UUID, label string) (string, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if id == uuid.Nil || label == "" {
		return "", apperr.New(apperr.InvalidInput, "complaint_id and classification_label are required")
	}
	return label, nil
}

// RecordClassification stores a model label, sets the category and moves a
// freshly received complaint to ai_classified.
func (s *ComplaintService) RecordClassification(ctx context.Context, in ClassificationInput, actor Actor) (*models.AIOutput, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.classify", "complaint_id", in.ComplaintID)

	label, err := validateLabel(in.ComplaintID, in.Label)
	if err != nil {
		return nil, err
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 1) {
		return nil, apperr.New(apperr.InvalidInput, "classification_confidence must be between 0 and 1")
	}
	actor = actor.orSystem().withDefaultNote("AI classification saved")

	var (
		out     *models.AIOutput
		updated *models.Complaint
		change  *statusChange
	)
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		c, err := tx.LockComplaint(ctx, in.ComplaintID)
		if err != nil {
			return err
		}
		out = &models.AIOutput{
			ComplaintID:              c.ID,
			ClassificationLabel:      &label,
			ClassificationConfidence: in.Confidence,
			ModelName:                modelOr(in.ModelName, "classifier-v1"),
		}
		if err := tx.CreateAIOutput(ctx, out); err != nil {
			return err
		}

		oldValue := models.Snapshot{"status": string(c.Status), "category": c.Category}
		category := map[string]any{"category": label}
		if c.Status == models.StatusReceived && CanTransition(c.Status, models.StatusAIClassified) {
			change, err = applyStatus(ctx, tx, c, models.StatusAIClassified, clock(s.Now), category)
		} else {
			err = tx.UpdateComplaint(ctx, c.ID, category)
		}
		if err != nil {
			return err
		}

		newStatus := c.Status
		if change != nil {
			newStatus = change.to
		}
		newValue := models.Snapshot{"status": string(newStatus), "category": label}
		if in.Confidence != nil {
			newValue["confidence"] = *in.Confidence
		}
		if err := tx.AppendEvent(ctx, auditRow(c.ID, models.EventAIClassified, oldValue, newValue, actor)); err != nil {
			return err
		}
		updated, err = tx.ComplaintByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("classification_recorded", "label", label, "status_changed", change != nil)
	if change != nil {
		s.publishStatus(ctx, updated, change, actor)
	}
	return out, nil
}

// OverrideClassification replaces the latest model label with a human one.
// The status is left alone.
func (s *ComplaintService) OverrideClassification(ctx context.Context, complaintID uuid.UUID, label string, actor Actor) (*models.AIOutput, error) {
	l := logging.FromContext(ctx).With("svc", "complaint.override", "complaint_id", complaintID)

	label, err := validateLabel(complaintID, label)
	if err != nil {
		return nil, err
	}
	if actor.Type == "" {
		actor.Type = models.ActorAdmin
	}
	actor = actor.withDefaultNote("AI classification overridden")

	var out *models.AIOutput
	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		c, err := tx.LockComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		oldValue := models.Snapshot{"category": c.Category}

		prev, err := tx.LatestAIOutput(ctx, c.ID)
		if err != nil {
			return err
		}
		if prev != nil {
			if err := tx.MarkAIOutputOverridden(ctx, prev.ID); err != nil {
				return err
			}
			oldValue["ai_output_id"] = prev.ID.String()
			oldValue["label"] = prev.ClassificationLabel
		}

		out = &models.AIOutput{
			ComplaintID:         c.ID,
			ClassificationLabel: &label,
			ModelName:           "manual-override",
			OverriddenByHuman:   true,
		}
		if err := tx.CreateAIOutput(ctx, out); err != nil {
			return err
		}
		if err := tx.UpdateComplaint(ctx, c.ID, map[string]any{"category": label}); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditRow(c.ID, models.EventClassificationOverridden,
			oldValue, models.Snapshot{"category": label}, actor))
	})
	if err != nil {
		return nil, err
	}

	l.Info("classification_overridden", "label", label)
	return out, nil
}

// AutoClassify asks the external classifier for a label and records it.
func (s *ComplaintService) AutoClassify(ctx context.Context, complaintID uuid.UUID, actor Actor) (*models.AIOutput, error) {
	if s.Classifier == nil {
		return nil, apperr.New(apperr.NotFound, "classifier is not configured")
	}
	c, err := s.Repo.ComplaintByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}

	text := trimmed(c.TranslatedText)
	if text == nil {
		text = trimmed(c.RawText)
	}
	if text == nil {
		return nil, apperr.New(apperr.InvalidInput, "complaint has no text to classify")
	}

	res, err := s.Classifier.Classify(ctx, *text, s.Labels)
	if err != nil {
		logging.FromContext(ctx).Error("classifier_failed", "complaint_id", complaintID, "error", err)
		return nil, apperr.Wrap(apperr.Internal, err, "classify complaint")
	}
	conf := res.Confidence()
	return s.RecordClassification(ctx, ClassificationInput{
		ComplaintID: complaintID,
		Label:       res.TopLabel,
		Confidence:  &conf,
		ModelName:   res.ModelName,
	}, actor)
}
