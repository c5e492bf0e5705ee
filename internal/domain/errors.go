package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrEmptyCart       = errors.New("empty cart")
	ErrMissingAddress  = errors.New("missing address")
	ErrMissingParams   = errors.New("missing payment parameters")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrUnsupported     = errors.New("unsupported payment method")

	// ErrRequestInFlight reports a repeated idempotency key whose first
	// request has not finished yet.
	ErrRequestInFlight = errors.New("request with this idempotency key is in progress")
)

// ValidationError is a caller mistake. Message is safe to return verbatim.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Err }

func Invalid(err error, format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFoundError reports a missing product, order or address.
type NotFoundError struct {
	Message string
	Err     error
}

func (e *NotFoundError) Error() string { return e.Message }
func (e *NotFoundError) Unwrap() error { return e.Err }

func Missing(err error, format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...), Err: err}
}

// AuthError covers a missing or rejected caller identity.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// GatewayError wraps any failure talking to a payment provider. Err may carry
// provider detail and must only be logged.
type GatewayError struct {
	Provider PaymentMethod
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
