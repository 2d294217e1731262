package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/dto"
)

// respondError maps service errors onto HTTP statuses: tier rejections are
// 403, malformed thresholds 400, missing records 404, the rest 500.
func respondError(c echo.Context, err error) error {
	switch {
	case dto.IsTierRestricted(err):
		return c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: err.Error()})
	case dto.IsInvalidThreshold(err):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not found"})
	default:
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
