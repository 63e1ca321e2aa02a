package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session client
var (
	// Transport errors
	ErrTransport  = errors.New("transport failure")
	ErrHTTPStatus = errors.New("unexpected http status")

	// Authentication errors
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentityMismatch   = errors.New("refreshed token belongs to a different user")
	ErrSessionChanged     = errors.New("session changed while the refresh was running")

	// Session identity errors
	ErrInvalidUserStructure = errors.New("invalid user structure: requires user_id and username")
	ErrValidation           = errors.New("session identity validation failed")
	ErrPersistFailed        = errors.New("session identity was not persisted")

	// Storage errors
	ErrNotFound = errors.New("not found")
)

// Join wraps cause with a sentinel so that both match errors.Is.
func Join(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
