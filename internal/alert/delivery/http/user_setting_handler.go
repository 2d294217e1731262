package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/logger"
)

// UserSettingHandler handles HTTP requests for the global channel settings.
type UserSettingHandler struct {
	settingService service.UserSettingService
	logger         *logger.Logger
}

// NewUserSettingHandler creates a new UserSettingHandler.
func NewUserSettingHandler(settingService service.UserSettingService, logger *logger.Logger) *UserSettingHandler {
	return &UserSettingHandler{settingService: settingService, logger: logger}
}

// RegisterRoutes registers the settings routes to the Echo group.
func (h *UserSettingHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:user_id/settings", h.GetSettings)
	g.PUT("/:user_id/settings", h.UpdateSettings)
}

// GetSettings godoc
// @Summary Get a user's global channel settings
// @Description Get the per-user master switches for web, email and SMS
// @Tags settings
// @Produce  json
// @Param   user_id  path    int true    "User ID"
// @Success 200 {object} entity.UserSetting
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /users/{user_id}/settings [get]
func (h *UserSettingHandler) GetSettings(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
	}

	setting, err := h.settingService.Get(c.Request().Context(), uint(userID))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, setting)
}

// UpdateSettings godoc
// @Summary Update a user's global channel settings
// @Description Update the per-user master switches and contact endpoints. Disabling a channel here suppresses it across every stock.
// @Tags settings
// @Accept  json
// @Produce  json
// @Param   user_id  path    int true    "User ID"
// @Param   settings  body    dto.UpdateUserSettingRequest   true    "Settings update"
// @Success 200 {object} entity.UserSetting
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /users/{user_id}/settings [put]
func (h *UserSettingHandler) UpdateSettings(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user ID"})
	}

	var req dto.UpdateUserSettingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	setting, err := h.settingService.Update(c.Request().Context(), uint(userID), &req)
	if err != nil {
		h.logger.Error("Failed to update user settings", logger.ErrorField(err), logger.Field("user_id", userID))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, setting)
}
