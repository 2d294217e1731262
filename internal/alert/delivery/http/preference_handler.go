package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/logger"
)

// PreferenceHandler handles HTTP requests for notification preferences.
type PreferenceHandler struct {
	preferenceService service.PreferenceService
	logger            *logger.Logger
}

// NewPreferenceHandler creates a new PreferenceHandler.
func NewPreferenceHandler(preferenceService service.PreferenceService, logger *logger.Logger) *PreferenceHandler {
	return &PreferenceHandler{preferenceService: preferenceService, logger: logger}
}

// RegisterRoutes registers the preference routes to the Echo group.
func (h *PreferenceHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:user_id/alerts/:alert_id/preferences", h.GetPreference)
	g.PUT("/:user_id/alerts/:alert_id/preferences", h.UpdatePreference)
}

// GetPreference godoc
// @Summary Get a notification preference
// @Description Get a user's threshold configuration and fired status for one stock alert
// @Tags preferences
// @Produce  json
// @Param   user_id   path    int true    "User ID"
// @Param   alert_id  path    int true    "Stock alert ID"
// @Success 200 {object} dto.PreferenceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /users/{user_id}/alerts/{alert_id}/preferences [get]
func (h *PreferenceHandler) GetPreference(c echo.Context) error {
	userID, alertID, err := pathIDs(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user or alert ID"})
	}

	resp, err := h.preferenceService.Get(c.Request().Context(), userID, alertID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// UpdatePreference godoc
// @Summary Update a notification preference
// @Description Apply a full or partial threshold configuration update. Rejects tier-gated kinds for free users and malformed specifications.
// @Tags preferences
// @Accept  json
// @Produce  json
// @Param   user_id   path    int true    "User ID"
// @Param   alert_id  path    int true    "Stock alert ID"
// @Param   preference  body    dto.UpdatePreferenceRequest   true    "Preference update"
// @Success 200 {object} dto.PreferenceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /users/{user_id}/alerts/{alert_id}/preferences [put]
func (h *PreferenceHandler) UpdatePreference(c echo.Context) error {
	userID, alertID, err := pathIDs(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user or alert ID"})
	}

	var req dto.UpdatePreferenceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	resp, err := h.preferenceService.Update(c.Request().Context(), userID, alertID, &req)
	if err != nil {
		h.logger.Error("Failed to update preference", logger.ErrorField(err),
			logger.Field("user_id", userID), logger.Field("alert_id", alertID))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func pathIDs(c echo.Context) (uint, uint, error) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return 0, 0, err
	}
	alertID, err := strconv.ParseUint(c.Param("alert_id"), 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint(userID), uint(alertID), nil
}
