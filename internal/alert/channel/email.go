package channel

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"tradeedge-alerts/internal/alert/config"
	"tradeedge-alerts/internal/entity"
)

// EmailAdapter delivers notifications over SMTP.
type EmailAdapter struct {
	dialer  *gomail.Dialer
	from    string
	limiter *rate.Limiter
}

// NewEmailAdapter creates the SMTP email adapter with a per-minute send cap.
func NewEmailAdapter(cfg config.Email) *EmailAdapter {
	perMinute := cfg.MaxPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	return &EmailAdapter{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.FromAddress,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// Channel returns the channel this adapter serves.
func (a *EmailAdapter) Channel() entity.Channel {
	return entity.ChannelEmail
}

// Send delivers the notification to the user's email address. A missing
// address is permanent; SMTP failures are transient.
func (a *EmailAdapter) Send(ctx context.Context, d Delivery) error {
	if d.EmailAddress == "" {
		return Permanent(fmt.Errorf("user %d has no email address on file", d.UserID))
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return Transient(fmt.Errorf("rate limiter wait canceled: %w", err))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", a.from)
	m.SetHeader("To", d.EmailAddress)
	m.SetHeader("Subject", d.Subject)
	m.SetBody("text/plain", d.Message)

	if err := a.dialer.DialAndSend(m); err != nil {
		return Transient(fmt.Errorf("failed to send email: %w", err))
	}
	return nil
}
