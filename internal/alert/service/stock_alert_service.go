package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tradeedge-alerts/internal/alert/dto"
	"tradeedge-alerts/internal/alert/repository"
	"tradeedge-alerts/internal/entity"
	"tradeedge-alerts/pkg/logger"
)

// StockAlertService manages the admin-facing stock alert records.
type StockAlertService interface {
	Upsert(ctx context.Context, req *dto.UpsertStockAlertRequest) (*entity.StockAlert, error)
	GetAll(ctx context.Context) ([]entity.StockAlert, error)
	GetByID(ctx context.Context, id uint) (*entity.StockAlert, error)
}

// NewStockAlertService creates a new StockAlertService.
func NewStockAlertService(alerts repository.StockAlertsRepository, log *logger.Logger) StockAlertService {
	return &stockAlertService{
		alerts: alerts,
		logger: log,
	}
}

type stockAlertService struct {
	alerts repository.StockAlertsRepository
	logger *logger.Logger
}

// Upsert creates or updates the alert's levels. The level ordering invariant
// is enforced here, once, at write time.
func (s *stockAlertService) Upsert(ctx context.Context, req *dto.UpsertStockAlertRequest) (*entity.StockAlert, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	alert, err := s.alerts.FindBySymbol(ctx, symbol)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		alert = &entity.StockAlert{Symbol: symbol}
	}

	alert.CompanyName = req.CompanyName
	alert.BuyZoneMin = req.BuyZoneMin
	alert.BuyZoneMax = req.BuyZoneMax
	alert.Target1 = req.Target1
	alert.Target2 = req.Target2
	alert.Target3 = req.Target3

	if err := alert.ValidateLevels(); err != nil {
		return nil, err
	}

	if err := s.alerts.Save(ctx, alert); err != nil {
		return nil, err
	}

	s.logger.Info("Stock alert saved", logger.StringField("symbol", symbol), logger.Field("id", alert.ID))
	return alert, nil
}

func (s *stockAlertService) GetAll(ctx context.Context) ([]entity.StockAlert, error) {
	return s.alerts.GetAll(ctx)
}

func (s *stockAlertService) GetByID(ctx context.Context, id uint) (*entity.StockAlert, error) {
	return s.alerts.FindByID(ctx, id)
}
