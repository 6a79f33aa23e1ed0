package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/serenitygrove/membership-api/internal/api/metrics"
	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

// AuthHandler exposes passwordless authentication and the self-service
// account surface.
type AuthHandler struct {
	links    ports.MagicLinkService
	sessions ports.SessionService
	privacy  ports.PrivacyService
	accounts ports.AdminService
	audit    ports.AuditRecorder
}

func NewAuthHandler(
	links ports.MagicLinkService,
	sessions ports.SessionService,
	privacy ports.PrivacyService,
	accounts ports.AdminService,
	audit ports.AuditRecorder,
) *AuthHandler {
	return &AuthHandler{
		links:    links,
		sessions: sessions,
		privacy:  privacy,
		accounts: accounts,
		audit:    audit,
	}
}

type magicLinkRequest struct {
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Purpose string `json:"purpose,omitempty" validate:"omitempty,oneof=login verify_email verify_phone reset_password"`
}

type magicLinkResponse struct {
	Message   string `json:"message"`
	ExpiresIn int64  `json:"expires_in"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// RequestMagicLink issues a single-use passwordless login link.
//
// @Summary      Request a magic link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      magicLinkRequest  true  "Destination and purpose"
// @Success      200   {object}  magicLinkResponse
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /auth/magic-link [post]
func (h *AuthHandler) RequestMagicLink(c echo.Context) error {
	var req magicLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ttl, err := h.links.RequestLink(c.Request().Context(), req.Email, req.Phone, domain.LinkPurpose(req.Purpose))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, magicLinkResponse{
		Message:   "magic link sent",
		ExpiresIn: int64(ttl.Seconds()),
	})
}

// VerifyMagicLink redeems a link and opens a session.
//
// @Summary      Verify a magic link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyRequest  true  "Raw magic link token"
// @Success      200   {object}  ports.LoginResult
// @Failure      400   {object}  map[string]string
// @Router       /auth/verify [post]
func (h *AuthHandler) VerifyMagicLink(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.links.VerifyLink(c.Request().Context(), req.Token, deviceInfo(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Refresh rotates the access/refresh pair.
//
// @Summary      Refresh session tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Current refresh token"
// @Success      200   {object}  ports.TokenPair
// @Failure      401   {object}  map[string]string
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pair, err := h.sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout invalidates every session of the caller.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Router       /auth/logout [post]
// @Security     BearerAuth
func (h *AuthHandler) Logout(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	if err := h.sessions.InvalidateAllForUser(c.Request().Context(), user.ID); err != nil {
		return err
	}

	h.audit.Record(c.Request().Context(), domain.AuditEntry{
		UserID:  user.ID,
		Action:  domain.ActionLogout,
		Success: true,
	})
	return c.JSON(http.StatusOK, messageResponse{Message: "logged out"})
}

// CreateAnonymous registers an account with no stored identity and logs it in.
//
// @Summary      Create an anonymous account
// @Tags         auth
// @Produce      json
// @Success      201  {object}  ports.LoginResult
// @Router       /auth/anonymous [post]
func (h *AuthHandler) CreateAnonymous(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := h.privacy.CreateAnonymousUser(ctx)
	if err != nil {
		return err
	}

	pair, err := h.sessions.Create(ctx, user.ID, deviceInfo(c))
	if err != nil {
		return err
	}
	metrics.SessionsCreatedTotal.WithLabelValues("anonymous").Inc()

	return c.JSON(http.StatusCreated, ports.LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         user,
	})
}

// Me returns the caller's own profile.
//
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Success      200  {object}  domain.User
// @Failure      401  {object}  map[string]string
// @Router       /users/me [get]
// @Security     BearerAuth
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

type updateMeRequest struct {
	PreferredName    *string                        `json:"preferred_name,omitempty" validate:"omitempty,max=100"`
	SobrietyDate     *dateOnly                      `json:"sobriety_date,omitempty"`
	ClearSobriety    bool                           `json:"clear_sobriety_date,omitempty"`
	Timezone         *string                        `json:"timezone,omitempty" validate:"omitempty,max=50"`
	Language         *string                        `json:"language,omitempty" validate:"omitempty,max=10"`
	ShowSobrietyDate *bool                          `json:"show_sobriety_date,omitempty"`
	ShowInDirectory  *bool                          `json:"show_in_directory,omitempty"`
	AllowContact     *bool                          `json:"allow_contact,omitempty"`
	Notifications    domain.NotificationPreferences `json:"notification_preferences,omitempty"`
}

// UpdateMe applies a partial profile update. Role changes are not accepted
// here; only the admin surface can change roles.
//
// @Summary      Update current user profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      updateMeRequest  true  "Fields to update"
// @Success      200   {object}  domain.User
// @Failure      401   {object}  map[string]string
// @Router       /users/me [put]
// @Security     BearerAuth
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req updateMeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	updated, err := h.accounts.UpdateUser(c.Request().Context(), user.ID, ports.UpdateUserInput{
		PreferredName:    req.PreferredName,
		SobrietyDate:     req.SobrietyDate.timePtr(),
		ClearSobriety:    req.ClearSobriety,
		Timezone:         req.Timezone,
		Language:         req.Language,
		ShowSobrietyDate: req.ShowSobrietyDate,
		ShowInDirectory:  req.ShowInDirectory,
		AllowContact:     req.AllowContact,
		Notifications:    req.Notifications,
	}, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteMe soft-deletes the caller's own account.
//
// @Summary      Delete own account
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Failure      401  {object}  map[string]string
// @Router       /users/me [delete]
// @Security     BearerAuth
func (h *AuthHandler) DeleteMe(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}

	if err := h.privacy.Delete(c.Request().Context(), user.ID, user.ID, false, true, true); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "account deleted"})
}
