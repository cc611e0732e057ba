package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/middleware"
	"github.com/civicdesk/civicdesk/internal/models"
	"github.com/civicdesk/civicdesk/internal/service"
	"github.com/civicdesk/civicdesk/internal/transport"
)

type AuthHTTP struct {
	Auth     *service.AuthService
	Sessions *service.SessionService
}

type userRef struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phone_number"`
}

type loginResponse struct {
	*service.TokenPair
	User    userRef         `json:"user"`
	Citizen *models.Citizen `json:"citizen"`
}

type meResponse struct {
	User    userRef         `json:"user"`
	Citizen *models.Citizen `json:"citizen"`
	Role    string          `json:"role"`
}

func (h *AuthHTTP) RequestOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.otp_request")

	var req transport.OTPRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "otp_request_failed", err)
	}
	ch, err := h.Auth.RequestChallenge(ctx, req.PhoneNumber)
	if err != nil {
		return fail(l, "otp_request_failed", err)
	}
	return okMessage(c, http.StatusOK, "OTP sent successfully", ch)
}

func (h *AuthHTTP) VerifyOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.otp_verify")

	var req transport.OTPVerifyRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "otp_verify_failed", err)
	}
	if req.PhoneNumber == "" || req.OTP == "" {
		return fail(l, "otp_verify_failed", apperr.New(apperr.InvalidInput, "phone_number and otp are required"))
	}

	login, err := h.Auth.VerifyChallenge(ctx, req.PhoneNumber, req.OTP, service.Profile{
		Name:              req.Name,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		return fail(l, "otp_verify_failed", err)
	}
	return okMessage(c, http.StatusOK, "OTP verified", loginResponse{
		TokenPair: login.Tokens,
		User:      userRef{ID: login.Citizen.ID, PhoneNumber: login.Citizen.PhoneNumber},
		Citizen:   login.Citizen,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req transport.RefreshRequest
	if err := bindBody(c, &req); err != nil {
		return fail(l, "refresh_failed", err)
	}
	pair, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(l, "refresh_failed", err)
	}
	return ok(c, http.StatusOK, pair)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	id := middleware.IdentityFrom(c)
	if err := h.Sessions.Revoke(ctx, id.SessionID); err != nil {
		return fail(l, "logout_failed", err)
	}
	l.Info("logout_success", "session_id", id.SessionID)
	return okMessage(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHTTP) Me(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	return ok(c, http.StatusOK, meResponse{
		User:    userRef{ID: id.Citizen.ID, PhoneNumber: id.Citizen.PhoneNumber},
		Citizen: id.Citizen,
		Role:    id.Role,
	})
}
