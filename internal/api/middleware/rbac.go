package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// RBAC enforces role-based access control on top of Auth. Checks are pure
// whitelist: each route names its exact allowed set, and a role outside it is
// a flat 403. No role implies another.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, _ := c.Get(CtxUser).(*domain.User)
			if user == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
			}
			if _, ok := allowed[user.Role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
