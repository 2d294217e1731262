package channel

import (
	"fmt"

	"tradeedge-alerts/internal/entity"
)

var kindLabels = map[entity.ThresholdKind]string{
	entity.ThresholdTarget1:      "Target 1",
	entity.ThresholdTarget2:      "Target 2",
	entity.ThresholdTarget3:      "Target 3",
	entity.ThresholdCustomTarget: "Custom Target",
	entity.ThresholdBuyZoneLow:   "Buy Zone Low",
	entity.ThresholdBuyZoneHigh:  "Buy Zone High",
	entity.ThresholdBuyLimit:     "Buy Limit",
}

// FormatSubject renders the one-line notification title.
func FormatSubject(p entity.FiringPayload) string {
	return fmt.Sprintf("%s hit %s at %s", p.Symbol, kindLabels[p.ThresholdKind], p.CrossingPrice.StringFixed(2))
}

// FormatMessage renders the notification body shared by all channels.
func FormatMessage(p entity.FiringPayload) string {
	verb := "crossed above"
	if p.Direction == entity.DirectionDown {
		verb = "dropped to"
	}
	return fmt.Sprintf("%s (%s) %s %s level %s, observed price %s at %s.",
		p.CompanyName,
		p.Symbol,
		verb,
		kindLabels[p.ThresholdKind],
		p.ThresholdPrice.StringFixed(2),
		p.CrossingPrice.StringFixed(2),
		p.ObservedAt.Format("2006-01-02 15:04:05 MST"),
	)
}
