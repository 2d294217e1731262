package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotificationPreference holds one user's threshold configuration for one
// stock alert. Created on first save from the configuration UI and long-lived.
type NotificationPreference struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	UserID       uint               `gorm:"not null;uniqueIndex:idx_pref_user_alert,priority:1" json:"user_id"`
	StockAlertID uint               `gorm:"not null;uniqueIndex:idx_pref_user_alert,priority:2" json:"stock_alert_id"`
	Thresholds   []ThresholdSetting `gorm:"foreignKey:PreferenceID" json:"thresholds"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// Threshold returns the setting for the given kind, or nil if unconfigured.
func (p *NotificationPreference) Threshold(kind ThresholdKind) *ThresholdSetting {
	for i := range p.Thresholds {
		if p.Thresholds[i].Kind == kind {
			return &p.Thresholds[i]
		}
	}
	return nil
}

// ThresholdSetting is one configured threshold kind inside a preference: its
// specification, its channel intent and its arm/fire state. Revision is bumped
// whenever the kind's own specification changes, which re-arms the threshold
// while keeping previously fired revisions monotonic in the ledger.
type ThresholdSetting struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	PreferenceID  uint                `gorm:"not null;uniqueIndex:idx_threshold_pref_kind,priority:1" json:"preference_id"`
	Kind          ThresholdKind       `gorm:"type:varchar(32);not null;uniqueIndex:idx_threshold_pref_kind,priority:2" json:"kind"`
	CustomPercent decimal.NullDecimal `gorm:"type:numeric" json:"custom_percent"`
	LimitPrice    decimal.NullDecimal `gorm:"type:numeric" json:"limit_price"`
	Channels      ChannelSet          `gorm:"embedded;embeddedPrefix:channel_" json:"channels"`
	State         ThresholdState      `gorm:"type:varchar(16);not null;default:armed" json:"state"`
	Revision      int                 `gorm:"not null;default:1" json:"revision"`
	FiredAt       *time.Time          `json:"fired_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ThresholdSetting) TableName() string {
	return "threshold_settings"
}

// ThresholdPrice resolves the concrete trigger price of this threshold against
// the alert's levels. The second return is false when the specification is
// incomplete (e.g. a custom target without a percent).
func (t *ThresholdSetting) ThresholdPrice(alert *StockAlert) (decimal.Decimal, bool) {
	switch t.Kind {
	case ThresholdTarget1:
		return alert.Target1, true
	case ThresholdTarget2:
		return alert.Target2, true
	case ThresholdTarget3:
		return alert.Target3, true
	case ThresholdBuyZoneLow:
		return alert.BuyZoneMin, true
	case ThresholdBuyZoneHigh:
		return alert.BuyZoneMax, true
	case ThresholdCustomTarget:
		if !t.CustomPercent.Valid {
			return decimal.Zero, false
		}
		pct := t.CustomPercent.Decimal.Div(decimal.NewFromInt(100))
		return alert.BuyZoneMidpoint().Mul(decimal.NewFromInt(1).Add(pct)), true
	case ThresholdBuyLimit:
		if !t.LimitPrice.Valid {
			return decimal.Zero, false
		}
		return t.LimitPrice.Decimal, true
	}
	return decimal.Zero, false
}
