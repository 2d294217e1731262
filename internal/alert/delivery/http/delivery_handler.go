package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

// DeliveryHandler exposes delivery attempts and the dead-letter resend to
// operators.
type DeliveryHandler struct {
	deliveryService service.DeliveryService
	logger          *logger.Logger
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(deliveryService service.DeliveryService, logger *logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService, logger: logger}
}

// RegisterRoutes registers the delivery routes to the Echo group.
func (h *DeliveryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetAttempts)
	g.GET("/deadletters", h.GetDeadLetters)
	g.POST("/:id/resend", h.ResendAttempt)
}

// GetAttempts godoc
// @Summary List delivery attempts
// @Description List delivery attempts, filterable by firing event and status
// @Tags deliveries
// @Produce  json
// @Param   firing_event_id  query    int false    "Firing event ID"
// @Param   status  query    string false    "Status filter (pending, sent, failed, deadlettered)"
// @Success 200 {array} entity.DeliveryAttempt
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /deliveries [get]
func (h *DeliveryHandler) GetAttempts(c echo.Context) error {
	var param dto.GetDeliveryAttemptsParam

	if v := c.QueryParam("firing_event_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid firing_event_id"})
		}
		eventID := uint(id)
		param.FiringEventID = &eventID
	}
	if v := c.QueryParam("status"); v != "" {
		param.Statuses = []entity.DeliveryStatus{entity.DeliveryStatus(v)}
	}

	attempts, err := h.deliveryService.Get(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to list delivery attempts", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list delivery attempts"})
	}

	return c.JSON(http.StatusOK, attempts)
}

// GetDeadLetters godoc
// @Summary List dead-lettered deliveries
// @Description List delivery attempts that exhausted their retries and need manual intervention
// @Tags deliveries
// @Produce  json
// @Success 200 {array} entity.DeliveryAttempt
// @Failure 500 {object} dto.ErrorResponse
// @Router /deliveries/deadletters [get]
func (h *DeliveryHandler) GetDeadLetters(c echo.Context) error {
	attempts, err := h.deliveryService.GetDeadLetters(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list dead letters", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list dead letters"})
	}
	return c.JSON(http.StatusOK, attempts)
}

// ResendAttempt godoc
// @Summary Resend a dead-lettered delivery
// @Description Give a dead-lettered delivery attempt a fresh retry budget
// @Tags deliveries
// @Produce  json
// @Param   id  path    int true    "Attempt ID"
// @Success 200 {object} entity.DeliveryAttempt
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /deliveries/{id}/resend [post]
func (h *DeliveryHandler) ResendAttempt(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid attempt ID"})
	}

	attempt, err := h.deliveryService.Resend(c.Request().Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to resend delivery attempt", logger.ErrorField(err), logger.Field("attempt_id", id))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, attempt)
}
