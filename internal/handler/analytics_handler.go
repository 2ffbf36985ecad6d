package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskmanager/internal/service"
)

// AnalyticsHandler serves the dashboard summary.
type AnalyticsHandler struct {
	svc service.AnalyticsService
}

func NewAnalyticsHandler(svc service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Get godoc
// @Summary Task analytics for the caller's scope
// @Tags analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.Summary
// @Failure 401 {object} errors.ErrorResponse
// @Router /analytics [get]
func (h *AnalyticsHandler) Get(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.GetAnalytics(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}
