package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type pageMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func okMessage(c echo.Context, status int, msg string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

func okPage(c echo.Context, data any, meta pageMeta) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Data: data, Meta: meta})
}

// httpError converts a service error into an echo error, keeping the
// original as the internal cause so the kind survives to the renderer.
func httpError(err error) *echo.HTTPError {
	status, _, msg := describe(err)
	return echo.NewHTTPError(status, msg).SetInternal(err)
}

// fail logs err at a level matching its status and returns it mapped.
func fail(l *slog.Logger, event string, err error) error {
	he := httpError(err)
	if he.Code >= http.StatusInternalServerError {
		l.Error(event, "status", he.Code, "error", err)
	} else {
		l.Warn(event, "status", he.Code, "error", err)
	}
	return he
}

func describe(err error) (status int, kind, msg string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.HTTPStatus(ae.Kind), string(ae.Kind), apperr.Message(err)
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, string(kindForStatus(he.Code)), fmt.Sprint(he.Message)
	}
	k := apperr.KindOf(err)
	return apperr.HTTPStatus(k), string(k), apperr.Message(err)
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return apperr.InvalidInput
	case http.StatusUnauthorized:
		return apperr.Unauthorized
	case http.StatusForbidden:
		return apperr.Forbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.NotFound
	case http.StatusConflict:
		return apperr.Conflict
	case http.StatusUnprocessableEntity:
		return apperr.InvalidTransition
	case http.StatusTooManyRequests:
		return apperr.RateLimited
	default:
		return apperr.Internal
	}
}

// ErrorHandler renders every error as the failure envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, kind, msg := describe(err)
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, envelope{Error: &errorBody{Kind: kind, Message: msg}})
}

func bindBody(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(apperr.InvalidInput, err, "invalid body")
	}
	return nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.InvalidInput, field+" must be a uuid")
	}
	return id, nil
}
