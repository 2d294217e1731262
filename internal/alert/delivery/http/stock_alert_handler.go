package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/service"
	"tradeedge-alerts/pkg/logger"
)

// StockAlertHandler handles HTTP requests for stock alerts.
type StockAlertHandler struct {
	alertService service.StockAlertService
	logger       *logger.Logger
}

// NewStockAlertHandler creates a new StockAlertHandler.
func NewStockAlertHandler(alertService service.StockAlertService, logger *logger.Logger) *StockAlertHandler {
	return &StockAlertHandler{alertService: alertService, logger: logger}
}

// RegisterRoutes registers the stock alert routes to the Echo group.
func (h *StockAlertHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.UpsertAlert)
	g.GET("", h.GetAllAlerts)
	g.GET("/:id", h.GetAlertByID)
}

// UpsertAlert godoc
// @Summary Create or update a stock alert
// @Description Create or update a stock alert's buy zone and targets. Levels must be ordered buy_zone_min <= buy_zone_max <= target_1 <= target_2 <= target_3.
// @Tags alerts
// @Accept  json
// @Produce  json
// @Param   alert  body    dto.UpsertStockAlertRequest   true    "Alert to save"
// @Success 200 {object} entity.StockAlert
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /alerts [post]
func (h *StockAlertHandler) UpsertAlert(c echo.Context) error {
	var req dto.UpsertStockAlertRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request payload"})
	}

	alert, err := h.alertService.Upsert(c.Request().Context(), &req)
	if err != nil {
		h.logger.Error("Failed to save stock alert", logger.ErrorField(err), logger.StringField("symbol", req.Symbol))
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, alert)
}

// GetAllAlerts godoc
// @Summary Get all stock alerts
// @Description Get all stock alerts with their last observed prices
// @Tags alerts
// @Produce  json
// @Success 200 {array} entity.StockAlert
// @Failure 500 {object} dto.ErrorResponse
// @Router /alerts [get]
func (h *StockAlertHandler) GetAllAlerts(c echo.Context) error {
	alerts, err := h.alertService.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get stock alerts", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get alerts"})
	}
	return c.JSON(http.StatusOK, alerts)
}

// GetAlertByID godoc
// @Summary Get a stock alert by ID
// @Description Get a single stock alert by its ID
// @Tags alerts
// @Produce  json
// @Param   id  path    int true    "Alert ID"
// @Success 200 {object} entity.StockAlert
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /alerts/{id} [get]
func (h *StockAlertHandler) GetAlertByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid alert ID"})
	}

	alert, err := h.alertService.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, alert)
}
