package channel

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"

	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/entity"
)

// SMSAdapter delivers notifications through the Twilio messaging API.
type SMSAdapter struct {
	client  *twilio.RestClient
	from    string
	limiter *rate.Limiter
}

// NewSMSAdapter creates the Twilio SMS adapter with a per-minute send cap.
func NewSMSAdapter(cfg config.SMS) *SMSAdapter {
	perMinute := cfg.MaxPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMSAdapter{
		client:  client,
		from:    cfg.FromNumber,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// Channel returns the channel this adapter serves.
func (a *SMSAdapter) Channel() entity.Channel {
	return entity.ChannelSMS
}

// Send delivers the notification to the user's phone number. A missing number
// is permanent; Twilio API failures are transient and fed to the retry policy.
func (a *SMSAdapter) Send(ctx context.Context, d Delivery) error {
	if d.PhoneNumber == "" {
		return Permanent(fmt.Errorf("user %d has no phone number on file", d.UserID))
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Transient(fmt.Errorf("rate limiter wait canceled: %w", err))
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(d.PhoneNumber)
	params.SetFrom(a.from)
	params.SetBody(fmt.Sprintf("%s: %s", d.Subject, d.Message))

	if _, err := a.client.Api.CreateMessage(params); err != nil {
		return Transient(fmt.Errorf("failed to send sms: %w", err))
	}
	return nil
}
