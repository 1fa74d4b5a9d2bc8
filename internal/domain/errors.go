package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors for deterministic calculation failures. These are never
// retried internally: retrying deterministic math changes nothing.
var (
	// ErrInvalidConfiguration marks grid parameters the caller must fix.
	ErrInvalidConfiguration = errors.New("invalid grid configuration")
	// ErrInvalidRange marks a price range the sequencer cannot work with,
	// e.g. geometric spacing over a non-positive bound.
	ErrInvalidRange = errors.New("invalid price range")
)

// RequestError is returned when a CRUD API call failed definitively, after
// retries were exhausted or on a non-retryable status.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}
