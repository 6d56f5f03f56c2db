package shared

import (
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrItemNotFound       = fmt.Errorf("item not found")

	// Migration errors
	ErrMigrationNotFound = fmt.Errorf("migration not found")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrRunTransient      = fmt.Errorf("migration run failed")
	ErrQueueFull         = fmt.Errorf("dispatch queue is full")
	ErrAlreadyQueued     = fmt.Errorf("migration already queued")
	ErrInvalidSignature  = fmt.Errorf("invalid signature")

	// Persistence errors
	ErrNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)

// IsFatal reports whether err makes a migration unrunnable.
//
// Fatal errors are never retried by dispatch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrMigrationNotFound)
}
