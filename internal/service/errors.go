// Package service provides business logic services for Teamdrop.
package service

import "errors"

// Common service errors. Domain rule violations use the sentinel
// errors in the domain package; these cover service-level concerns.
var (
	// ErrInternalError wraps unexpected infrastructure failures.
	ErrInternalError = errors.New("internal server error")

	// ErrNotAuthenticated indicates the request carries no valid identity.
	ErrNotAuthenticated = errors.New("authentication required")
)
