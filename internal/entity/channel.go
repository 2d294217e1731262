package entity

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelWeb   Channel = "web"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AllChannels returns every delivery channel.
func AllChannels() []Channel {
	return []Channel{ChannelWeb, ChannelEmail, ChannelSMS}
}

// ChannelSet is a per-channel enablement toggle, embedded both in the global
// user settings and in each threshold configuration.
type ChannelSet struct {
	Web   bool `gorm:"column:web;not null;default:false" json:"web"`
	Email bool `gorm:"column:email;not null;default:false" json:"email"`
	SMS   bool `gorm:"column:sms;not null;default:false" json:"sms"`
}

// Enabled reports whether the given channel is on in this set.
func (c ChannelSet) Enabled(ch Channel) bool {
	switch ch {
	case ChannelWeb:
		return c.Web
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.SMS
	}
	return false
}

// Any reports whether at least one channel is enabled.
func (c ChannelSet) Any() bool {
	return c.Web || c.Email || c.SMS
}
