package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/transport"
)

type NotificationHTTP struct {
	Svc *service.NotificationService
}

func (h *NotificationHTTP) Queue(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.queue")

	var req transport.NotificationRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "notification_queue_failed", err)
	}
	if req.ComplaintID == "" {
		return fail(l, "notification_queue_failed", apperr.New(apperr.InvalidInput, "complaint_id and channel are required"))
	}
	id, err := parseID(req.ComplaintID, "complaint_id")
	if err != nil {
		return fail(l, "notification_queue_failed", err)
	}

	n, err := h.Svc.Queue(ctx, service.NotificationInput{ComplaintID: id, Channel: req.Channel, TemplateKey: req.TemplateKey})
	if err != nil {
		return fail(l, "notification_queue_failed", err)
	}
	return okMessage(c, http.StatusCreated, "Notification queued", n)
}

func (h *NotificationHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.list")

	id, err := parseID(c.Param("complaint_id"), "complaint_id")
	if err != nil {
		return fail(l, "notification_list_failed", err)
	}
	out, err := h.Svc.ListForComplaint(ctx, id)
	if err != nil {
		return fail(l, "notification_list_failed", err)
	}
	return ok(c, http.StatusOK, out)
}

func (h *NotificationHTTP) MarkStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "notification.mark_status")

	id, err := parseID(c.Param("id"), "notification_id")
	if err != nil {
		return fail(l, "notification_status_failed", err)
	}
	var req transport.DeliveryStatusRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "notification_status_failed", err)
	}

	n, err := h.Svc.MarkStatus(ctx, id, service.DeliveryUpdate{
		DeliveryStatus:    req.DeliveryStatus,
		ProviderMessageID: req.ProviderMessageID,
		ErrorMessage:      req.ErrorMessage,
	})
	if err != nil {
		return fail(l, "notification_status_failed", err)
	}
	return okMessage(c, http.StatusOK, "Notification status updated", n)
}
