package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmanager/internal/model"
	"taskmanager/internal/service"
)

// UserHandler serves profile and user administration endpoints.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// UpdateProfileRequest is a partial profile update.
type UpdateProfileRequest struct {
	Name                    *string                  `json:"name"`
	Email                   *string                  `json:"email" validate:"omitempty,email"`
	NotificationPreferences *model.NotificationPatch `json:"notificationPreferences"`
}

// UpdateRoleRequest changes a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// AssignManagerRequest sets or clears a user's manager.
type AssignManagerRequest struct {
	ManagerID model.OptionalID `json:"managerId" swaggertype:"string"`
}

// GetProfile godoc
// @Summary Current user's profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.User
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateProfile godoc
// @Summary Update current user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	updated, err := h.svc.UpdateProfile(c.Request().Context(), user.ID, service.ProfileUpdate{
		Name:                    req.Name,
		Email:                   req.Email,
		NotificationPreferences: req.NotificationPreferences,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.User
// @Failure 403 {object} errors.ErrorResponse
// @Router /users/all [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	users, err := h.svc.ListUsers(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body UpdateRoleRequest true "New role"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{userId}/role [put]
func (h *UserHandler) UpdateRole(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	var req UpdateRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.svc.UpdateRole(c.Request().Context(), caller, id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// AssignManager godoc
// @Summary Set or clear a user's manager
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body AssignManagerRequest true "Manager ID, null to clear"
// @Success 200 {object} model.User
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/{userId}/manager [put]
func (h *UserHandler) AssignManager(c echo.Context) error {
	caller, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := uuidParam(c, "userId")
	if err != nil {
		return err
	}
	var req AssignManagerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.svc.AssignManager(c.Request().Context(), caller, id, req.ManagerID.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
