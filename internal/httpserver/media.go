package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/service"
)

type MediaHTTP struct {
	Svc *service.ComplaintService
}

func (h *MediaHTTP) Attach(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "media.attach")

	id, err := parseID(c.Param("complaint_id"), "complaint_id")
	if err != nil {
		return fail(l, "media_attach_failed", err)
	}
	var in service.MediaInput
	if err := bindBody(c, &in); err != nil {
		return fail(l, "media_attach_failed", err)
	}

	m, err := h.Svc.AttachMedia(ctx, id, in, middleware.IdentityFrom(c).Actor(""))
	if err != nil {
		return fail(l, "media_attach_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Media attached", m)
}

func (h *MediaHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "media.list")

	id, err := parseID(c.Param("complaint_id"), "complaint_id")
	if err != nil {
		return fail(l, "media_list_failed", err)
	}
	out, err := h.Svc.ListMedia(ctx, id)
	if err != nil {
		return fail(l, "media_list_failed", err)
	}
	return ok(c, http.StatusOK, out)
}
