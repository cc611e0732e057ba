package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/pkg/tokens"
)

const IntakeTokenHeader = "X-Intake-Token"

// RequireIntakeToken guards the webhooks with an HS256 service token. With
// no secret configured the routes are open.
func RequireIntakeToken(secret []byte, issuer string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(secret) == 0 {
			return next
		}
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(IntakeTokenHeader)
			if raw == "" {
				return apperr.New(apperr.Unauthorized, "missing intake token")
			}
			claims, err := tokens.IntakeClaimsFromToken(raw, secret, issuer)
			if err != nil {
				logging.FromContext(c.Request().Context()).Warn("intake_token_rejected", "error", err)
				return apperr.New(apperr.Unauthorized, "invalid intake token")
			}
			c.Set("intake_source", claims.Source)
			return next(c)
		}
	}
}
