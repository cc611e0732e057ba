package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/util"
)

type CitizenHTTP struct {
	Svc *service.CitizenService
}

func (h *CitizenHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "citizen.get")

	citizen, err := h.Svc.GetByPhone(ctx, c.Param("phone"))
	if err != nil {
		return fail(l, "citizen_get_failed", err)
	}
	return ok(c, http.StatusOK, citizen)
}

func (h *CitizenHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "citizen.history")

	items, err := h.Svc.History(ctx, c.Param("phone"), util.ParseIntDefault(c.QueryParam("limit"), util.DefaultLimit))
	if err != nil {
		return fail(l, "citizen_history_failed", err)
	}
	return ok(c, http.StatusOK, items)
}
