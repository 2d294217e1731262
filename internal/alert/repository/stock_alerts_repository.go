package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tradeedge-alerts/internal/entity"
)

type StockAlertsRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.StockAlert, error)
	FindBySymbol(ctx context.Context, symbol string) (*entity.StockAlert, error)
	GetAll(ctx context.Context) ([]entity.StockAlert, error)
	Save(ctx context.Context, alert *entity.StockAlert) error
	UpdatePrice(ctx context.Context, id uint, price decimal.Decimal, observedAt time.Time) error
}

type stockAlertsRepository struct {
	db *gorm.DB
}

func NewStockAlertsRepository(db *gorm.DB) StockAlertsRepository {
	return &stockAlertsRepository{
		db: db,
	}
}

func (r *stockAlertsRepository) FindByID(ctx context.Context, id uint) (*entity.StockAlert, error) {
	var alert entity.StockAlert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *stockAlertsRepository) FindBySymbol(ctx context.Context, symbol string) (*entity.StockAlert, error) {
	var alert entity.StockAlert
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *stockAlertsRepository) GetAll(ctx context.Context) ([]entity.StockAlert, error) {
	var alerts []entity.StockAlert
	if err := r.db.WithContext(ctx).Order("symbol asc").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *stockAlertsRepository) Save(ctx context.Context, alert *entity.StockAlert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

// UpdatePrice writes the last observed price. Only the owning symbol lane
// calls this, so a plain update is safe.
func (r *stockAlertsRepository) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal, observedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.StockAlert{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_price":    price,
			"last_observed_at": observedAt,
		}).Error
}
