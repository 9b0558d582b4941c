package errors

import (
	"errors"
	"fmt"
)

// ErrUnsupportedOperation is returned by providers for calls outside their payment flow
// (for example a capture on a push-payment provider).
var ErrUnsupportedOperation = errors.New("operation not supported by provider")

// ErrValidation is returned when client input cannot be turned into a valid snapshot
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrConfiguration is returned when provider credentials are absent
type ErrConfiguration struct {
	Provider string
	Missing  []string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("%s is not configured (missing %v)", e.Provider, e.Missing)
}

// ErrProviderUnavailable wraps transport failures and non-success provider responses.
// The outcome of the payment is unknown; callers may retry.
type ErrProviderUnavailable struct {
	Provider string
	Op       string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("%s %s: provider unavailable: %v", e.Provider, e.Op, e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error {
	return e.Err
}

// ErrProviderRejected is returned when the provider refused a request with a client error
type ErrProviderRejected struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
}

func (e *ErrProviderRejected) Error() string {
	return fmt.Sprintf("%s %s rejected (status %d): %s", e.Provider, e.Op, e.StatusCode, e.Message)
}

// ErrNotFound represents a resource not found error
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrAlreadyProcessed is returned when a terminal pending order is asked to transition again
type ErrAlreadyProcessed struct {
	TransactionID string
	Status        string
}

func (e *ErrAlreadyProcessed) Error() string {
	return fmt.Sprintf("transaction %s already processed (%s)", e.TransactionID, e.Status)
}

// ErrInvalidStateTransition represents an invalid state transition
type ErrInvalidStateTransition struct {
	From fmt.Stringer
	To   fmt.Stringer
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ErrUnauthorized represents an authentication failure
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return e.Message
}

// IsRetryable reports whether err leaves the payment outcome unknown
func IsRetryable(err error) bool {
	var unavailable *ErrProviderUnavailable
	return errors.As(err, &unavailable)
}
