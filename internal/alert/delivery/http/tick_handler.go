package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/logger"
)

// TickHandler accepts price ticks over HTTP for feeds that cannot write to the
// Redis stream directly.
type TickHandler struct {
	tickService service.TickService
	logger      *logger.Logger
}

// NewTickHandler creates a new TickHandler.
func NewTickHandler(tickService service.TickService, logger *logger.Logger) *TickHandler {
	return &TickHandler{tickService: tickService, logger: logger}
}

// RegisterRoutes registers the tick ingest route to the Echo group.
func (h *TickHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.IngestTick)
}

// IngestTick godoc
// @Summary Ingest a price tick
// @Description Publish one observed price for a symbol onto the tick stream
// @Tags ticks
// @Accept  json
// @Produce  json
// @Param   tick  body    dto.IngestTickRequest   true    "Tick to publish"
// @Success 202 {object} nil
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /ticks [post]
func (h *TickHandler) IngestTick(c echo.Context) error {
	var req dto.IngestTickRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	tick := dto.PriceTick{Symbol: req.Symbol, Price: req.Price}
	if req.ObservedAt != "" {
		observedAt, err := time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "observed_at must be RFC3339"})
		}
		tick.ObservedAt = observedAt
	}

	if err := h.tickService.Publish(c.Request().Context(), tick); err != nil {
		h.logger.Error("Failed to publish tick", logger.ErrorField(err), logger.StringField("symbol", req.Symbol))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to publish tick"})
	}

	return c.NoContent(http.StatusAccepted)
}
