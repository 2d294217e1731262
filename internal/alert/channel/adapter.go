package channel

import (
	"context"
	"errors"
	"fmt"

	"tradeedge-alerts/internal/entity"
)

// Delivery is the channel-agnostic payload handed to an adapter.
type Delivery struct {
	UserID       uint
	EmailAddress string
	PhoneNumber  string
	Subject      string
	Message      string
	Payload      entity.FiringPayload
}

// Adapter sends a delivery on one channel. Implementations classify failures
// as transient (retried with backoff) or permanent (dead-lettered immediately)
// via TransientError and PermanentError.
type Adapter interface {
	Channel() entity.Channel
	Send(ctx context.Context, d Delivery) error
}

// TransientError marks a failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient channel error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent channel error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is a permanent channel error. Anything else,
// including timeouts, is treated as transient by the dispatcher.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
