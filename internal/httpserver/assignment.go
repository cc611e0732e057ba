package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/transport"
)

type AssignmentHTTP struct {
	Svc *service.AssignmentService
}

func noteOf(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (h *AssignmentHTTP) Assign(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "assignment.assign")

	var req transport.AssignRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "assign_failed", err)
	}
	complaintID, err := parseID(req.ComplaintID, "complaint_id")
	if err != nil {
		return fail(l, "assign_failed", err)
	}

	a, err := h.Svc.Assign(ctx, service.AssignInput{
		ComplaintID:    complaintID,
		AssignedToID:   req.AssignedToID,
		AssignedToType: req.AssignedToType,
		DueAt:          req.DueAt,
	}, middleware.IdentityFrom(c).Actor(noteOf(req.Note)))
	if err != nil {
		return fail(l, "assign_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Complaint assigned", a)
}

func (h *AssignmentHTTP) Reassign(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "assignment.reassign")

	id, err := parseID(c.Param("id"), "assignment_id")
	if err != nil {
		return fail(l, "reassign_failed", err)
	}
	var req transport.AssignRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "reassign_failed", err)
	}

	a, err := h.Svc.Reassign(ctx, id, service.AssignInput{
		AssignedToID:   req.AssignedToID,
		AssignedToType: req.AssignedToType,
		DueAt:          req.DueAt,
	}, middleware.IdentityFrom(c).Actor(noteOf(req.Note)))
	if err != nil {
		return fail(l, "reassign_failed", err)
	}
	return okMessage(c, http.StatusOK, "Complaint reassigned", a)
}

func (h *AssignmentHTTP) Close(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "assignment.close")

	id, err := parseID(c.Param("id"), "assignment_id")
	if err != nil {
		return fail(l, "assignment_close_failed", err)
	}
	var req transport.CloseAssignmentRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "assignment_close_failed", err)
	}

	a, err := h.Svc.Close(ctx, id, middleware.IdentityFrom(c).Actor(noteOf(req.Note)))
	if err != nil {
		return fail(l, "assignment_close_failed", err)
	}
	return okMessage(c, http.StatusOK, "Assignment closed", a)
}
