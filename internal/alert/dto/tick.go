package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is one observed price for a symbol. Ticks arrive at-least-once and
// not necessarily in observation order.
type PriceTick struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observed_at"`
}
