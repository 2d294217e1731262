package entity

import "time"

// MembershipTier is the user's subscription level.
type MembershipTier string

const (
	TierFree MembershipTier = "free"
	TierPaid MembershipTier = "paid"
)

// AtLeast reports whether t grants everything the other tier grants.
func (t MembershipTier) AtLeast(other MembershipTier) bool {
	if other == TierFree {
		return true
	}
	return t == TierPaid
}

// UserSetting holds the per-user master channel switches and the contact
// endpoints the channel adapters deliver to. Created at signup.
type UserSetting struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	Channels    ChannelSet     `gorm:"embedded;embeddedPrefix:channel_" json:"channels"`
	Tier        MembershipTier `gorm:"type:varchar(16);not null;default:free" json:"tier"`
	Email       string         `json:"email"`
	PhoneNumber string         `json:"phone_number"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}
