package ratelimit

import "errors"

var (
	// ErrInvalidConfig reports a rate limit configuration that cannot be enforced.
	ErrInvalidConfig = errors.New("invalid rate limit config")
	// ErrNotConfigured reports an operation with no rate limit configuration.
	ErrNotConfigured = errors.New("rate limit not configured")
	// ErrStoreUnavailable wraps failures of the state backend.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
