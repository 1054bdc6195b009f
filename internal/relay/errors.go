package relay

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMappingNotFound    = errors.New("no active mapping for website restaurant id")
	ErrMappingMismatch    = errors.New("restaurant uid does not match an active mapping")
	ErrRestaurantNotFound = errors.New("restaurant not found or inactive")
	ErrRequestNotFound    = errors.New("handshake request not found")
	ErrTerminalState      = errors.New("handshake request already in a terminal state")
	ErrOrderNotFound      = errors.New("order not found")
	ErrBadTransition      = errors.New("invalid order status transition")
)

// ValidationError names the offending field so callers can fix their payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
	}
	return "missing required field: " + e.Field
}

// ConflictError carries the id of the in-flight handshake request so the
// caller can poll it instead of retrying blindly.
type ConflictError struct {
	RequestID string
}

func (e *ConflictError) Error() string {
	return "a pending handshake request already exists: " + e.RequestID
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}
