package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/serenitygrove/membership-api/internal/api/middleware"
	"github.com/serenitygrove/membership-api/internal/core/domain"
)

// ctxUser extracts the authenticated user injected by the Auth middleware and
// fast-fails before any service call when it is absent.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, _ := c.Get(middleware.CtxUser).(*domain.User)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return user, nil
}

// deviceInfo collects the raw request attributes the session layer hashes.
func deviceInfo(c echo.Context) domain.DeviceInfo {
	return domain.DeviceInfo{
		Origin:    c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}
