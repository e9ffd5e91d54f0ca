package model

// Tenant status constants. The router consults these before creating
// or returning a pool.
const (
	StatusProvisioning  = "provisioning"
	StatusActive        = "active"
	StatusSuspended     = "suspended"
	StatusDeprovisioned = "deprovisioned"
	StatusFailed        = "failed"
)

// Provisioning state machine steps, recorded alongside the status.
const (
	ProvisionStateRequested  = "requested"
	ProvisionStateAllocating = "allocating"
	ProvisionStateMigrating  = "migrating"
	ProvisionStateActive     = "active"
	ProvisionStateFailed     = "failed"
)

// Pool health values reported by the pool cache.
const (
	HealthHealthy     = "healthy"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
)
