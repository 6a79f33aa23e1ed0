package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/serenitygrove/membership-api/internal/core/domain"
	"github.com/serenitygrove/membership-api/internal/core/ports"
)

// AdminHandler exposes user management, deletion/anonymization, and
// trusted-servant assignments. Routes are wired behind Auth + RBAC; the exact
// allowed role set is declared per route in the router.
type AdminHandler struct {
	admin   ports.AdminService
	privacy ports.PrivacyService
}

func NewAdminHandler(admin ports.AdminService, privacy ports.PrivacyService) *AdminHandler {
	return &AdminHandler{admin: admin, privacy: privacy}
}

type userListResponse struct {
	Users      []*domain.User `json:"users"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int64          `json:"total_pages"`
}

// ListUsers returns a paginated, filterable user list.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Param        page      query     int     false  "Page (1-based)"
// @Param        per_page  query     int     false  "Page size (max 100)"
// @Param        role      query     string  false  "Filter by role"
// @Param        is_active query     bool    false  "Filter by active flag"
// @Param        search    query     string  false  "Partial name/email match"
// @Success      200       {object}  userListResponse
// @Failure      403       {object}  map[string]string
// @Router       /admin/users [get]
// @Security     BearerAuth
func (h *AdminHandler) ListUsers(c echo.Context) error {
	filter := ports.ListUsersFilter{
		Role:   domain.Role(c.QueryParam("role")),
		Search: c.QueryParam("search"),
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Limit, _ = strconv.Atoi(c.QueryParam("per_page"))
	if raw := c.QueryParam("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "is_active must be a boolean")
		}
		filter.IsActive = &active
	}

	users, total, err := h.admin.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	// Same bounds the service applies, so the metadata matches the page.
	perPage := filter.Limit
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return c.JSON(http.StatusOK, userListResponse{
		Users:      users,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + int64(perPage) - 1) / int64(perPage),
	})
}

type createUserRequest struct {
	Email         string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string    `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	PreferredName string    `json:"preferred_name,omitempty" validate:"omitempty,max=100"`
	Role          string    `json:"role,omitempty" validate:"omitempty,oneof=anonymous guest member secretary treasurer host admin"`
	SobrietyDate  *dateOnly `json:"sobriety_date,omitempty"`
}

// CreateUser registers a user on someone's behalf.
//
// @Summary      Create a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  domain.User
// @Failure      409   {object}  map[string]string
// @Router       /admin/users [post]
// @Security     BearerAuth
func (h *AdminHandler) CreateUser(c echo.Context) error {
	actor, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.admin.CreateUser(c.Request().Context(), ports.CreateUserInput{
		Email:         req.Email,
		Phone:         req.Phone,
		PreferredName: req.PreferredName,
		Role:          domain.Role(req.Role),
		SobrietyDate:  req.SobrietyDate.timePtr(),
	}, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

type updateUserRequest struct {
	updateMeRequest
	Role *string `json:"role,omitempty" validate:"omitempty,oneof=anonymous guest member secretary treasurer host admin"`
}

// UpdateUser applies a partial update to any user, including role changes.
//
// @Summary      Update a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to update"
// @Success      200   {object}  domain.User
// @Failure      404   {object}  map[string]string
// @Router       /admin/users/{id} [put]
// @Security     BearerAuth
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	actor, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	in := ports.UpdateUserInput{
		PreferredName:    req.PreferredName,
		SobrietyDate:     req.SobrietyDate.timePtr(),
		ClearSobriety:    req.ClearSobriety,
		Timezone:         req.Timezone,
		Language:         req.Language,
		ShowSobrietyDate: req.ShowSobrietyDate,
		ShowInDirectory:  req.ShowInDirectory,
		AllowContact:     req.AllowContact,
		Notifications:    req.Notifications,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		in.Role = &role
	}

	user, err := h.admin.UpdateUser(c.Request().Context(), c.Param("id"), in, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// DeleteUser deactivates a user, or permanently removes them after full
// anonymization when permanent=true.
//
// @Summary      Delete or deactivate a user
// @Tags         admin
// @Produce      json
// @Param        id             path      string  true   "User id"
// @Param        permanent      query     bool    false  "Anonymize and remove the row"
// @Param        preserve_audit query     bool    false  "Keep audit linkage (default true)"
// @Success      200            {object}  messageResponse
// @Failure      400            {object}  map[string]string
// @Failure      404            {object}  map[string]string
// @Router       /admin/users/{id} [delete]
// @Security     BearerAuth
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor, err := ctxUser(c)
	if err != nil {
		return err
	}

	permanent, _ := strconv.ParseBool(c.QueryParam("permanent"))
	preserveAudit := true
	if raw := c.QueryParam("preserve_audit"); raw != "" {
		preserveAudit, _ = strconv.ParseBool(raw)
	}

	if err := h.privacy.Delete(c.Request().Context(), c.Param("id"), actor.ID, permanent, preserveAudit, false); err != nil {
		return err
	}

	msg := "user deactivated"
	if permanent {
		msg = "user permanently deleted"
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msg})
}

type anonymizeRequest struct {
	PreserveAudit *bool `json:"preserve_audit,omitempty"`
}

// AnonymizeUser irreversibly strips PII without removing the user row.
//
// @Summary      Anonymize a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path      string            true   "User id"
// @Param        body  body      anonymizeRequest  false  "Options"
// @Success      200   {object}  messageResponse
// @Failure      404   {object}  map[string]string
// @Router       /admin/users/{id}/anonymize [post]
// @Security     BearerAuth
func (h *AdminHandler) AnonymizeUser(c echo.Context) error {
	var req anonymizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	preserveAudit := true
	if req.PreserveAudit != nil {
		preserveAudit = *req.PreserveAudit
	}

	if err := h.privacy.Anonymize(c.Request().Context(), c.Param("id"), preserveAudit); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "user anonymized"})
}

// PrivacyReport returns the privacy posture of a user.
//
// @Summary      Privacy report for a user
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  ports.PrivacyReport
// @Failure      404  {object}  map[string]string
// @Router       /admin/users/{id}/privacy-report [get]
// @Security     BearerAuth
func (h *AdminHandler) PrivacyReport(c echo.Context) error {
	report, err := h.privacy.Report(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// Stats returns PII-free user aggregates.
//
// @Summary      User statistics
// @Tags         admin
// @Produce      json
// @Success      200  {object}  ports.UserStats
// @Router       /admin/stats [get]
// @Security     BearerAuth
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.admin.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

type assignmentRequest struct {
	Position  string    `json:"position" validate:"required"`
	GroupID   string    `json:"group_id,omitempty"`
	MeetingID string    `json:"meeting_id,omitempty"`
	StartDate *dateOnly `json:"start_date,omitempty"`
	EndDate   *dateOnly `json:"end_date,omitempty"`
	Notes     string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CreateAssignment gives a user a service position.
//
// @Summary      Create a service assignment
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "User id"
// @Param        body  body      assignmentRequest  true  "Assignment"
// @Success      201   {object}  domain.ServiceAssignment
// @Failure      409   {object}  map[string]string
// @Router       /admin/users/{id}/service-assignments [post]
// @Security     BearerAuth
func (h *AdminHandler) CreateAssignment(c echo.Context) error {
	actor, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req assignmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.admin.AssignPosition(c.Request().Context(), c.Param("id"), ports.AssignmentInput{
		Position:  domain.ServicePosition(req.Position),
		GroupID:   req.GroupID,
		MeetingID: req.MeetingID,
		StartDate: req.StartDate.timePtr(),
		EndDate:   req.EndDate.timePtr(),
		Notes:     req.Notes,
	}, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

// RemoveAssignment soft-deletes a service assignment.
//
// @Summary      Remove a service assignment
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "Assignment id"
// @Success      200  {object}  messageResponse
// @Failure      404  {object}  map[string]string
// @Router       /admin/service-assignments/{id} [delete]
// @Security     BearerAuth
func (h *AdminHandler) RemoveAssignment(c echo.Context) error {
	actor, err := ctxUser(c)
	if err != nil {
		return err
	}
	if err := h.admin.RemoveAssignment(c.Request().Context(), c.Param("id"), actor.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "service assignment removed"})
}

// Directory returns the privacy-enforced member directory.
//
// @Summary      Member directory
// @Tags         members
// @Produce      json
// @Success      200  {array}  domain.DirectoryEntry
// @Router       /users/directory [get]
// @Security     BearerAuth
func (h *AdminHandler) Directory(c echo.Context) error {
	entries, err := h.admin.Directory(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}
