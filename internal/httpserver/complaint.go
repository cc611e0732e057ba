package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/transport"
	"github.com/civicdesk/civicdesk/internal/util"
)

type ComplaintHTTP struct {
	Svc *service.ComplaintService
}

// Create files a complaint. Citizens always file under their own number.
func (h *ComplaintHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complaint.create")

	var in service.CreateInput
	if err := bindBody(c, &in); err != nil {
		return fail(l, "complaint_create_failed", err)
	}
	id := middleware.IdentityFrom(c)
	if !id.IsStaff() {
		in.PhoneNumber = id.Citizen.PhoneNumber
	}

	created, err := h.Svc.Create(ctx, in, id.Actor("Complaint created via API"))
	if err != nil {
		return fail(l, "complaint_create_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Complaint created", created)
}

func (h *ComplaintHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complaint.list")

	from, err := service.ParseDate(c.QueryParam("start_date"), false)
	if err != nil {
		return fail(l, "complaint_list_failed", err)
	}
	to, err := service.ParseDate(c.QueryParam("end_date"), true)
	if err != nil {
		return fail(l, "complaint_list_failed", err)
	}

	page, err := h.Svc.List(ctx, service.ListQuery{
		Status:       c.QueryParam("status"),
		Priority:     c.QueryParam("priority"),
		Channel:      c.QueryParam("channel"),
		WardID:       c.QueryParam("ward_id"),
		DepartmentID: c.QueryParam("department_id"),
		Search:       c.QueryParam("search"),
		From:         from,
		To:           to,
		Page:         util.ParseIntDefault(c.QueryParam("page"), 1),
		Limit:        util.ParseIntDefault(c.QueryParam("limit"), util.DefaultLimit),
	})
	if err != nil {
		return fail(l, "complaint_list_failed", err)
	}
	return okPage(c, page.Items, pageMeta{Page: page.Page, Limit: page.Limit, Total: page.Total})
}

func (h *ComplaintHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complaint.get")

	id, err := parseID(c.Param("id"), "complaint_id")
	if err != nil {
		return fail(l, "complaint_get_failed", err)
	}
	d, err := h.Svc.Get(ctx, id)
	if err != nil {
		return fail(l, "complaint_get_failed", err)
	}
	return ok(c, http.StatusOK, d)
}

func (h *ComplaintHTTP) GetByNumber(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complaint.get_by_number")

	n, err := strconv.ParseInt(c.Param("complaint_no"), 10, 64)
	if err != nil {
		return fail(l, "complaint_get_failed", apperr.New(apperr.InvalidInput, "complaint_no must be a positive integer"))
	}
	d, err := h.Svc.GetByNumber(ctx, n)
	if err != nil {
		return fail(l, "complaint_get_failed", err)
	}
	return ok(c, http.StatusOK, d)
}

func (h *ComplaintHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complaint.update_status")

	id, err := parseID(c.Param("id"), "complaint_id")
	if err != nil {
		return fail(l, "status_update_failed", err)
	}
	var req transport.StatusUpdateRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "status_update_failed", err)
	}
	if req.Status == "" {
		return fail(l, "status_update_failed", apperr.New(apperr.InvalidInput, "status is required"))
	}

	updated, err := h.Svc.UpdateStatus(ctx, id, models.Status(req.Status), middleware.IdentityFrom(c).Actor(noteOf(req.Note)))
	if err != nil {
		return fail(l, "status_update_failed", err)
	}
	return okMessage(c, http.StatusOK, "Complaint status updated", updated)
}

func (h *ComplaintHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "complaint.delete")

	id, err := parseID(c.Param("id"), "complaint_id")
	if err != nil {
		return fail(l, "complaint_delete_failed", err)
	}
	deleted, err := h.Svc.Delete(ctx, id, middleware.IdentityFrom(c).Actor(""))
	if err != nil {
		return fail(l, "complaint_delete_failed", err)
	}
	return okMessage(c, http.StatusOK, "Complaint deleted", deleted)
}
