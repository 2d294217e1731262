package dto

import (
	"errors"
	"fmt"

	"tradeedge-alerts/internal/entity"
)

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Configuration error codes. Configuration errors are rejected synchronously at
// preference-write time and never become runtime state.
const (
	CodeTierRestricted   = "TierRestricted"
	CodeInvalidThreshold = "InvalidThreshold"
)

// ConfigurationError is a rejected preference or alert write.
type ConfigurationError struct {
	Code   string
	Kind   entity.ThresholdKind
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Detail, e.Kind)
}

// NewTierRestrictedError reports that the user's tier may not configure kind.
func NewTierRestrictedError(kind entity.ThresholdKind) *ConfigurationError {
	return &ConfigurationError{
		Code:   CodeTierRestricted,
		Kind:   kind,
		Detail: "threshold kind requires a paid membership",
	}
}

// NewInvalidThresholdError reports a malformed threshold specification.
func NewInvalidThresholdError(kind entity.ThresholdKind, detail string) *ConfigurationError {
	return &ConfigurationError{
		Code:   CodeInvalidThreshold,
		Kind:   kind,
		Detail: detail,
	}
}

// IsTierRestricted reports whether err is a TierRestricted configuration error.
func IsTierRestricted(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr) && cfgErr.Code == CodeTierRestricted
}

// IsInvalidThreshold reports whether err is an InvalidThreshold configuration error.
func IsInvalidThreshold(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr) && cfgErr.Code == CodeInvalidThreshold
}

// LedgerWriteError is a transient failure to commit a firing event. The
// orchestrator retries the commit and never dispatches before it succeeds.
type LedgerWriteError struct {
	Err error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger write failed: %v", e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }
