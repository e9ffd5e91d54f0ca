package router

import "errors"

var (
	// ErrAccessDenied is returned when the calling principal has no
	// active grant for the requested tenant. Never retried automatically.
	ErrAccessDenied = errors.New("access denied")

	// ErrTenantConnectionFailed is returned when opening or probing a
	// tenant pool fails. Transient; callers may retry with backoff.
	ErrTenantConnectionFailed = errors.New("tenant connection failed")

	// ErrPoolExhausted is returned when every connection in a tenant's
	// pool is in use. Callers should back off and retry.
	ErrPoolExhausted = errors.New("tenant pool exhausted")
)
