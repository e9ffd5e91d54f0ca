package model

import (
	"fmt"
	"regexp"
	"time"
)

// TenantID is a distinct type for tenant identifiers so a raw string
// meant for something else cannot be passed where a tenant is expected.
type TenantID string

var tenantIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// ParseTenantID validates a raw identifier and returns it as a TenantID.
func ParseTenantID(raw string) (TenantID, error) {
	if !tenantIDRegex.MatchString(raw) {
		return "", fmt.Errorf("invalid tenant id %q", raw)
	}
	return TenantID(raw), nil
}

func (id TenantID) String() string { return string(id) }

type Tenant struct {
	ID                TenantID   `json:"id" db:"id"`
	DisplayName       string     `json:"display_name" db:"display_name"`
	Status            string     `json:"status" db:"status"`
	ProvisionState    string     `json:"provision_state" db:"provision_state"`
	ProvisionError    *string    `json:"provision_error,omitempty" db:"provision_error"`
	IsolationMode     string     `json:"isolation_mode" db:"isolation_mode"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	LastProvisionedAt *time.Time `json:"last_provisioned_at,omitempty" db:"last_provisioned_at"`
}

// NewTenant returns a tenant record at the start of the provisioning
// state machine.
func NewTenant(id TenantID, displayName string) *Tenant {
	now := time.Now()
	return &Tenant{
		ID:             id,
		DisplayName:    displayName,
		Status:         StatusProvisioning,
		ProvisionState: ProvisionStateRequested,
		IsolationMode:  IsolationDedicatedInstance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Isolation modes. Only dedicated instances are supported today; the
// column exists so shared-server modes can be added without a schema change.
const (
	IsolationDedicatedInstance = "dedicated_instance"
)

// PoolHealth is a point-in-time snapshot of one tenant's cached pool,
// safe to expose over the introspection API (no connection secrets).
type PoolHealth struct {
	TenantID        TenantID  `json:"tenant_id"`
	Health          string    `json:"health"`
	MaxConns        int32     `json:"max_conns"`
	AcquiredConns   int32     `json:"acquired_conns"`
	TotalConns      int32     `json:"total_conns"`
	LastUsedAt      time.Time `json:"last_used_at"`
	ConsecutiveErrs int       `json:"consecutive_errors"`
}
