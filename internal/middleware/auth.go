// Package middleware holds the echo middleware shared by the API routes.
package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/internal/service"
)

const identityKey = "identity"

type Resolver interface {
	Resolve(ctx context.Context, accessToken string) (*service.Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

type Auth struct {
	Sessions Resolver
}

func NewAuth(sessions Resolver) *Auth {
	return &Auth{Sessions: sessions}
}

// RequireAuth resolves the bearer token and stores the identity on the
// echo context.
func (a *Auth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		token := BearerToken(req.Header.Get(echo.HeaderAuthorization))
		if token == "" {
			return apperr.New(apperr.Unauthorized, "missing bearer token")
		}
		id, err := a.Sessions.Resolve(req.Context(), token)
		if err != nil {
			return err
		}

		l := logging.FromContext(req.Context()).With("citizen_id", id.Citizen.ID, "role", id.Role)
		c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))
		c.Set(identityKey, id)
		return next(c)
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := service.RequireRole(IdentityFrom(c), roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func IdentityFrom(c echo.Context) *service.Identity {
	id, _ := c.Get(identityKey).(*service.Identity)
	return id
}
