package service

import (
	"github.com/shopspring/decimal"

	"tradeedge-alerts/internal/entity"
)

// Crossing is one threshold that transitioned from not-crossed to crossed in a
// single price step.
type Crossing struct {
	Kind           entity.ThresholdKind
	Direction      entity.CrossingDirection
	ThresholdPrice decimal.Decimal
	Setting        *entity.ThresholdSetting
}

// CrossingEvaluator detects threshold crossings between two consecutive
// observations. It is pure: no I/O, no state.
type CrossingEvaluator struct{}

// NewCrossingEvaluator creates a new CrossingEvaluator.
func NewCrossingEvaluator() *CrossingEvaluator {
	return &CrossingEvaluator{}
}

// Evaluate returns the thresholds of pref that crossed when the price moved
// from previous to current, in fixed kind order.
//
// A crossing requires a prior reference point: when previous is unset (first
// tick ever seen for the symbol) nothing crosses. Exact touches count as
// crossed. Thresholds already fired are skipped entirely, which makes the
// result monotonic by construction.
func (e *CrossingEvaluator) Evaluate(previous decimal.NullDecimal, current decimal.Decimal, alert *entity.StockAlert, pref *entity.NotificationPreference) []Crossing {
	if !previous.Valid {
		return nil
	}
	prev := previous.Decimal

	var crossings []Crossing
	for _, kind := range entity.AllThresholdKinds() {
		setting := pref.Threshold(kind)
		if setting == nil || setting.State == entity.ThresholdFired {
			continue
		}
		if !setting.Channels.Any() {
			// Nothing would be delivered; treat as unconfigured.
			continue
		}

		threshold, ok := setting.ThresholdPrice(alert)
		if !ok {
			continue
		}

		direction := kind.Direction()
		if !crossed(direction, prev, current, threshold) {
			continue
		}

		crossings = append(crossings, Crossing{
			Kind:           kind,
			Direction:      direction,
			ThresholdPrice: threshold,
			Setting:        setting,
		})
	}
	return crossings
}

// crossed implements the direction rule: upward kinds fire on
// prev < threshold <= current, downward kinds on prev > threshold >= current.
func crossed(direction entity.CrossingDirection, prev, current, threshold decimal.Decimal) bool {
	switch direction {
	case entity.DirectionUp:
		return prev.LessThan(threshold) && current.GreaterThanOrEqual(threshold)
	case entity.DirectionDown:
		return prev.GreaterThan(threshold) && current.LessThanOrEqual(threshold)
	}
	return false
}
