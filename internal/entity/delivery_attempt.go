package entity

import (
	"database/sql"
	"time"
)

// DeliveryStatus is the state of one channel delivery for a firing event.
type DeliveryStatus string

const (
	DeliveryPending      DeliveryStatus = "pending"
	DeliverySent         DeliveryStatus = "sent"
	DeliveryFailed       DeliveryStatus = "failed"
	DeliveryDeadlettered DeliveryStatus = "deadlettered"
)

// Terminal reports whether no further delivery work is scheduled for this status.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySent || s == DeliveryDeadlettered
}

// DeliveryAttempt tracks delivery of a firing event on one channel. One row per
// (event, channel); the row is mutated until it reaches a terminal status and
// is never deleted. Delivery outcome never feeds back into the firing state.
type DeliveryAttempt struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	FiringEventID uint           `gorm:"not null;uniqueIndex:idx_attempt_event_channel,priority:1" json:"firing_event_id"`
	Channel       Channel        `gorm:"type:varchar(16);not null;uniqueIndex:idx_attempt_event_channel,priority:2" json:"channel"`
	Status        DeliveryStatus `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     sql.NullString `json:"last_error"`
	NextRetryAt   *time.Time     `json:"next_retry_at"`
	SentAt        *time.Time     `json:"sent_at"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DeliveryAttempt) TableName() string {
	return "delivery_attempts"
}
