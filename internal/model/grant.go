package model

import "time"

// Principal identifies an authenticated caller requesting tenant-scoped
// access. For admin API calls this is the API key identity; application
// services supply their own service identity.
type Principal struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes"`
}

// AccessGrant allows one principal to resolve one tenant.
type AccessGrant struct {
	ID          string     `json:"id" db:"id"`
	PrincipalID string     `json:"principal_id" db:"principal_id"`
	TenantID    TenantID   `json:"tenant_id" db:"tenant_id"`
	GrantedBy   string     `json:"granted_by" db:"granted_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// ScopeAllTenants marks a principal (platform operators, the
// provisioner) as exempt from per-tenant grant checks.
const ScopeAllTenants = "tenants:*"

// HasScope reports whether the principal carries the given scope.
func (p Principal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}
