package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/serenitygrove/membership-api/internal/core/ports"
	"github.com/serenitygrove/membership-api/internal/core/token"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxUser      = "user"       // *domain.User
	CtxSessionID = "session_id" // string
)

// Auth resolves the bearer token to an active user and injects it into the
// request context. The token must be a valid access token (never a refresh
// token) and the user must still exist and be active; every failure is a flat
// 401 with no detail about which check tripped.
func Auth(issuer *token.Issuer, users ports.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := issuer.Verify(parts[1], token.KindAccess)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			user, err := users.FindByID(c.Request().Context(), claims.UserID)
			if err != nil || !user.IsActive {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(CtxUser, user)
			c.Set(CtxSessionID, claims.SessionID)

			return next(c)
		}
	}
}
