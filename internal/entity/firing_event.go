package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// FiringEvent is the append-only record that a threshold crossing has been
// committed. The unique key (user, alert, kind, revision) is what makes firing
// idempotent: duplicate ticks, replays and retried orchestrator steps all land
// on the same row.
type FiringEvent struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;uniqueIndex:idx_firing_key,priority:1" json:"user_id"`
	StockAlertID  uint            `gorm:"not null;uniqueIndex:idx_firing_key,priority:2" json:"stock_alert_id"`
	ThresholdKind ThresholdKind   `gorm:"type:varchar(32);not null;uniqueIndex:idx_firing_key,priority:3" json:"threshold_kind"`
	Revision      int             `gorm:"not null;default:1;uniqueIndex:idx_firing_key,priority:4" json:"revision"`
	CrossingPrice decimal.Decimal `gorm:"type:numeric;not null" json:"crossing_price"`
	Payload       datatypes.JSON  `gorm:"type:jsonb" json:"payload"`
	FiredAt       time.Time       `gorm:"not null" json:"fired_at"`
	DispatchedAt  *time.Time      `json:"dispatched_at"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (FiringEvent) TableName() string {
	return "firing_events"
}

// FiringPayload is the rendered context stored on the event and handed to the
// channel adapters.
type FiringPayload struct {
	Symbol         string            `json:"symbol"`
	CompanyName    string            `json:"company_name"`
	ThresholdKind  ThresholdKind     `json:"threshold_kind"`
	ThresholdPrice decimal.Decimal   `json:"threshold_price"`
	CrossingPrice  decimal.Decimal   `json:"crossing_price"`
	Direction      CrossingDirection `json:"direction"`
	ObservedAt     time.Time         `json:"observed_at"`
}
