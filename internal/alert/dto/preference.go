package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"tradeedge-alerts/internal/entity"
)

// ThresholdUpdate is the write payload for one threshold kind. Nil fields in a
// partial update leave the stored value untouched.
type ThresholdUpdate struct {
	Channels      *entity.ChannelSet `json:"channels,omitempty"`
	CustomPercent *decimal.Decimal   `json:"custom_percent,omitempty"`
	LimitPrice    *decimal.Decimal   `json:"limit_price,omitempty"`
}

// UpdatePreferenceRequest is a full or partial preference update for one
// (user, stock alert) pair. Keys are threshold kinds.
type UpdatePreferenceRequest struct {
	Thresholds map[entity.ThresholdKind]ThresholdUpdate `json:"thresholds"`
}

// ThresholdResponse is the read model of one configured threshold.
type ThresholdResponse struct {
	Kind          entity.ThresholdKind  `json:"kind"`
	Channels      entity.ChannelSet     `json:"channels"`
	CustomPercent *decimal.Decimal      `json:"custom_percent,omitempty"`
	LimitPrice    *decimal.Decimal      `json:"limit_price,omitempty"`
	State         entity.ThresholdState `json:"state"`
	FiredAt       *time.Time            `json:"fired_at,omitempty"`
}

// PreferenceResponse is the read model of a notification preference, including
// the per-threshold fired status surfaced to the user.
type PreferenceResponse struct {
	UserID       uint                `json:"user_id"`
	StockAlertID uint                `json:"stock_alert_id"`
	Symbol       string              `json:"symbol"`
	Thresholds   []ThresholdResponse `json:"thresholds"`
}

// NewPreferenceResponse builds the read model from entities.
func NewPreferenceResponse(pref *entity.NotificationPreference, alert *entity.StockAlert) *PreferenceResponse {
	resp := &PreferenceResponse{
		UserID:       pref.UserID,
		StockAlertID: pref.StockAlertID,
		Symbol:       alert.Symbol,
	}
	for _, t := range pref.Thresholds {
		tr := ThresholdResponse{
			Kind:     t.Kind,
			Channels: t.Channels,
			State:    t.State,
			FiredAt:  t.FiredAt,
		}
		if t.CustomPercent.Valid {
			v := t.CustomPercent.Decimal
			tr.CustomPercent = &v
		}
		if t.LimitPrice.Valid {
			v := t.LimitPrice.Decimal
			tr.LimitPrice = &v
		}
		resp.Thresholds = append(resp.Thresholds, tr)
	}
	return resp
}
