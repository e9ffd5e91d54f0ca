package model

import (
	"encoding/json"
	"time"
)

// Audit event types recorded to the control-plane audit trail.
const (
	AuditDescriptorRead    = "descriptor.read"
	AuditDescriptorWrite   = "descriptor.write"
	AuditResolveAllowed    = "resolve.allowed"
	AuditResolveDenied     = "resolve.denied"
	AuditTenantProvision   = "tenant.provision"
	AuditTenantDeprovision = "tenant.deprovision"
	AuditTenantSuspend     = "tenant.suspend"
	AuditTenantResume      = "tenant.resume"
	AuditGrantCreate       = "grant.create"
	AuditGrantRevoke       = "grant.revoke"
	AuditFleetMigration    = "fleet.migrate"
)

// AuditEntry is one row of the control-plane audit log.
type AuditEntry struct {
	ID        int64           `json:"id" db:"id"`
	Actor     string          `json:"actor" db:"actor"`
	Event     string          `json:"event" db:"event"`
	TenantID  *TenantID       `json:"tenant_id,omitempty" db:"tenant_id"`
	Detail    json.RawMessage `json:"detail,omitempty" db:"detail"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
