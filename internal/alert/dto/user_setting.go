package dto

import "tradeedge-alerts/internal/entity"

// UpdateUserSettingRequest mutates the user's global channel switches and
// contact endpoints. Nil fields are left untouched.
type UpdateUserSettingRequest struct {
	Channels    *entity.ChannelSet `json:"channels,omitempty"`
	Email       *string            `json:"email,omitempty"`
	PhoneNumber *string            `json:"phone_number,omitempty"`
}
