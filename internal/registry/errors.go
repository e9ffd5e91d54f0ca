package registry

import "errors"

// Tenant-state errors surfaced by descriptor lookups. The pool cache
// and resolver propagate these unchanged; the API layer maps them to
// HTTP status codes.
var (
	ErrTenantUnknown        = errors.New("tenant unknown")
	ErrTenantNotProvisioned = errors.New("tenant not provisioned")
	ErrTenantSuspended      = errors.New("tenant suspended")
	ErrTenantDeprovisioned  = errors.New("tenant deprovisioned")

	// ErrDescriptorLocked is returned when a Put would redirect a
	// provisioned tenant's traffic to a different physical database.
	ErrDescriptorLocked = errors.New("descriptor locked while tenant is provisioned")
)
