package dto

import (
	"github.com/shopspring/decimal"
)

// UpsertStockAlertRequest creates or updates a stock alert's levels.
type UpsertStockAlertRequest struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"company_name"`
	BuyZoneMin  decimal.Decimal `json:"buy_zone_min"`
	BuyZoneMax  decimal.Decimal `json:"buy_zone_max"`
	Target1     decimal.Decimal `json:"target_1"`
	Target2     decimal.Decimal `json:"target_2"`
	Target3     decimal.Decimal `json:"target_3"`
}

// IngestTickRequest is the HTTP body for the tick ingest endpoint.
type IngestTickRequest struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt string          `json:"observed_at"` // RFC3339; defaults to now when empty
}
