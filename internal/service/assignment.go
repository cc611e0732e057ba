package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/eventbus"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/repo"
)

const DefaultAssigneeType = "field_staff"

// AssignmentService keeps at most one active assignment per complaint.
type AssignmentService struct {
	Repo *repo.GormRepo
	Bus  *eventbus.Bus
	Now  func() time.Time
}

type AssignInput struct {
	ComplaintID    uuid.UUID
	AssignedToID   string
	AssignedToType string
	DueAt          *time.Time
}

func assigneeSnapshot(a *models.Assignment) models.Snapshot {
	if a == nil {
		return nil
	}
	return models.Snapshot{
		"assignment_id":    a.ID.String(),
		"assigned_to_id":   a.AssignedToID,
		"assigned_to_type": a.AssignedToType,
	}
}

func normalizeAssignee(in *AssignInput) error {
	in.AssignedToID = strings.TrimSpace(in.AssignedToID)
	in.AssignedToType = strings.TrimSpace(in.AssignedToType)
	if in.AssignedToID == "" {
		return apperr.New(apperr.InvalidInput, "assigned_to_id is required")
	}
	if in.AssignedToType == "" {
		in.AssignedToType = DefaultAssigneeType
	}
	return nil
}

// replaceActive deactivates every active assignment of the complaint and
// inserts the new active one.
func replaceActive(ctx context.Context, tx *repo.GormRepo, complaintID uuid.UUID, in AssignInput, assigner Actor) (*models.Assignment, error) {
	if _, err := tx.DeactivateAssignments(ctx, complaintID); err != nil {
		return nil, err
	}
	a := &models.Assignment{
		ComplaintID:    complaintID,
		AssignedToID:   in.AssignedToID,
		AssignedToType: in.AssignedToType,
		AssignedByID:   assigner.ID,
		DueAt:          in.DueAt,
		IsActive:       true,
	}
	if err := tx.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Assign puts the complaint on one assignee and moves it to assigned.
// Terminal complaints cannot be assigned.
func (s *AssignmentService) Assign(ctx context.Context, in AssignInput, assigner Actor) (*models.Assignment, error) {
	l := logging.FromContext(ctx).With("svc", "assignment.assign", "complaint_id", in.ComplaintID)

	if in.ComplaintID == uuid.Nil {
		return nil, apperr.New(apperr.InvalidInput, "complaint_id and assigned_to_id are required")
	}
	if err := normalizeAssignee(&in); err != nil {
		return nil, err
	}
	if assigner.Type == "" {
		assigner.Type = models.ActorAdmin
	}
	assigner = assigner.withDefaultNote("Complaint assigned")

	var (
		created *models.Assignment
		updated *models.Complaint
		change  *statusChange
	)
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		c, err := tx.LockComplaint(ctx, in.ComplaintID)
		if err != nil {
			return err
		}
		if IsTerminal(c.Status) {
			return apperr.New(apperr.InvalidTransition,
				fmt.Sprintf("invalid status transition from %s to %s", c.Status, models.StatusAssigned))
		}

		prev, err := tx.ActiveAssignment(ctx, c.ID)
		if err != nil {
			return err
		}
		if created, err = replaceActive(ctx, tx, c.ID, in, assigner); err != nil {
			return err
		}
		// Assignment is the one way into assigned that skips CanTransition:
		// any non-terminal status moves there, and the change is still
		// audited and published like a normal transition.
		if c.Status != models.StatusAssigned {
			if change, err = applyStatus(ctx, tx, c, models.StatusAssigned, clock(s.Now), nil); err != nil {
				return err
			}
		}
		if err := tx.AppendEvent(ctx, auditRow(c.ID, models.EventAssigned,
			assigneeSnapshot(prev), assigneeSnapshot(created), assigner)); err != nil {
			return err
		}
		updated, err = tx.ComplaintByID(ctx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.Info("complaint_assigned", "assignment_id", created.ID, "assignee", created.AssignedToID)
	if change != nil {
		publishStatus(ctx, s.Bus, updated, change, assigner)
	}
	return created, nil
}

// Reassign supersedes the referenced assignment with a new active one on
// the same complaint.
func (s *AssignmentService) Reassign(ctx context.Context, assignmentID uuid.UUID, in AssignInput, assigner Actor) (*models.Assignment, error) {
	l := logging.FromContext(ctx).With("svc", "assignment.reassign", "assignment_id", assignmentID)

	if assignmentID == uuid.Nil {
		return nil, apperr.New(apperr.InvalidInput, "assignment_id and assigned_to_id are required")
	}
	if err := normalizeAssignee(&in); err != nil {
		return nil, err
	}
	if assigner.Type == "" {
		assigner.Type = models.ActorAdmin
	}
	assigner = assigner.withDefaultNote("Complaint reassigned")

	var created *models.Assignment
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		current, err := tx.AssignmentByID(ctx, assignmentID)
		if err != nil {
			return err
		}
		if _, err := tx.LockComplaint(ctx, current.ComplaintID); err != nil {
			return err
		}
		if created, err = replaceActive(ctx, tx, current.ComplaintID, in, assigner); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, auditRow(current.ComplaintID, models.EventReassigned,
			assigneeSnapshot(current), assigneeSnapshot(created), assigner))
	})
	if err != nil {
		return nil, err
	}

	l.Info("complaint_reassigned", "new_assignment_id", created.ID, "assignee", created.AssignedToID)
	return created, nil
}

// Close deactivates an assignment. Only a change of state is audited.
func (s *AssignmentService) Close(ctx context.Context, assignmentID uuid.UUID, actor Actor) (*models.Assignment, error) {
	if actor.Type == "" {
		actor.Type = models.ActorAdmin
	}
	actor = actor.withDefaultNote("Assignment closed")

	var closed *models.Assignment
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		a, err := tx.AssignmentByID(ctx, assignmentID)
		if err != nil {
			return err
		}
		wasActive, err := tx.DeactivateAssignment(ctx, a.ID)
		if err != nil {
			return err
		}
		if wasActive {
			if err := tx.AppendEvent(ctx, auditRow(a.ComplaintID, models.EventAssignmentClosed,
				models.Snapshot{"is_active": true}, models.Snapshot{"is_active": false}, actor)); err != nil {
				return err
			}
		}
		closed, err = tx.AssignmentByID(ctx, a.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}
