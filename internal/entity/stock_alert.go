package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockAlert is an admin-curated stock with its buy zone and profit targets.
// CurrentPrice is owned by the alert engine's symbol lane and is only mutated
// through observed price ticks.
type StockAlert struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	Symbol         string              `gorm:"uniqueIndex;not null" json:"symbol"`
	CompanyName    string              `gorm:"not null" json:"company_name"`
	BuyZoneMin     decimal.Decimal     `gorm:"type:numeric;not null" json:"buy_zone_min"`
	BuyZoneMax     decimal.Decimal     `gorm:"type:numeric;not null" json:"buy_zone_max"`
	Target1        decimal.Decimal     `gorm:"type:numeric;not null" json:"target_1"`
	Target2        decimal.Decimal     `gorm:"type:numeric;not null" json:"target_2"`
	Target3        decimal.Decimal     `gorm:"type:numeric;not null" json:"target_3"`
	CurrentPrice   decimal.NullDecimal `gorm:"type:numeric" json:"current_price"`
	LastObservedAt *time.Time          `json:"last_observed_at"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StockAlert) TableName() string {
	return "stock_alerts"
}

// ValidateLevels enforces buyZoneMin <= buyZoneMax <= target1 <= target2 <= target3.
// Checked at alert creation; the engine assumes it afterwards.
func (a *StockAlert) ValidateLevels() error {
	if a.BuyZoneMin.GreaterThan(a.BuyZoneMax) {
		return fmt.Errorf("buy_zone_min %s exceeds buy_zone_max %s", a.BuyZoneMin, a.BuyZoneMax)
	}
	if a.BuyZoneMax.GreaterThan(a.Target1) {
		return fmt.Errorf("buy_zone_max %s exceeds target_1 %s", a.BuyZoneMax, a.Target1)
	}
	if a.Target1.GreaterThan(a.Target2) {
		return fmt.Errorf("target_1 %s exceeds target_2 %s", a.Target1, a.Target2)
	}
	if a.Target2.GreaterThan(a.Target3) {
		return fmt.Errorf("target_2 %s exceeds target_3 %s", a.Target2, a.Target3)
	}
	return nil
}

// BuyZoneMidpoint is the reference price for custom percentage targets.
func (a *StockAlert) BuyZoneMidpoint() decimal.Decimal {
	return a.BuyZoneMin.Add(a.BuyZoneMax).Div(decimal.NewFromInt(2))
}
