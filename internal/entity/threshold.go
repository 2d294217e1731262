package entity

// ThresholdKind identifies one of the fixed price trigger conditions a user can
// configure on a stock alert.
type ThresholdKind string

const (
	ThresholdTarget1      ThresholdKind = "target1"
	ThresholdTarget2      ThresholdKind = "target2"
	ThresholdTarget3      ThresholdKind = "target3"
	ThresholdCustomTarget ThresholdKind = "custom_target"
	ThresholdBuyZoneLow   ThresholdKind = "buy_zone_low"
	ThresholdBuyZoneHigh  ThresholdKind = "buy_zone_high"
	ThresholdBuyLimit     ThresholdKind = "buy_limit"
)

// CrossingDirection is the price direction that triggers a threshold.
type CrossingDirection string

const (
	DirectionUp   CrossingDirection = "up"
	DirectionDown CrossingDirection = "down"
)

// AllThresholdKinds returns every threshold kind in evaluation order.
func AllThresholdKinds() []ThresholdKind {
	return []ThresholdKind{
		ThresholdTarget1,
		ThresholdTarget2,
		ThresholdTarget3,
		ThresholdCustomTarget,
		ThresholdBuyZoneLow,
		ThresholdBuyZoneHigh,
		ThresholdBuyLimit,
	}
}

// IsValid reports whether k is one of the known threshold kinds.
func (k ThresholdKind) IsValid() bool {
	switch k {
	case ThresholdTarget1, ThresholdTarget2, ThresholdTarget3,
		ThresholdCustomTarget, ThresholdBuyZoneLow, ThresholdBuyZoneHigh, ThresholdBuyLimit:
		return true
	}
	return false
}

// Direction returns the crossing direction that fires this kind. Profit targets
// fire on upward crossings, buy-side thresholds on downward crossings.
func (k ThresholdKind) Direction() CrossingDirection {
	switch k {
	case ThresholdBuyZoneLow, ThresholdBuyZoneHigh, ThresholdBuyLimit:
		return DirectionDown
	default:
		return DirectionUp
	}
}

// RequiresPaidTier reports whether configuring this kind is gated to paid
// memberships.
func (k ThresholdKind) RequiresPaidTier() bool {
	return k == ThresholdCustomTarget || k == ThresholdBuyLimit
}

// ThresholdState is the arm/fire state of one configured threshold. Fired is
// terminal with respect to price motion; only an edit of the threshold's own
// specification re-arms it.
type ThresholdState string

const (
	ThresholdArmed ThresholdState = "armed"
	ThresholdFired ThresholdState = "fired"
)
