package dto

import "tradeedge-alerts/internal/entity"

// GetPreferencesParam filters notification preference lookups.
type GetPreferencesParam struct {
	UserID       *uint
	StockAlertID *uint
}

// GetDeliveryAttemptsParam filters delivery attempt lookups.
type GetDeliveryAttemptsParam struct {
	FiringEventID *uint
	Statuses      []entity.DeliveryStatus
}
