package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/model"
)

// DescriptorService is the durable lookup of how to reach each tenant's
// database. Every read and write is recorded to the control-plane audit
// trail with the acting identity.
type DescriptorService struct {
	db  DB
	rec *audit.Recorder
}

func NewDescriptorService(db DB, rec *audit.Recorder) *DescriptorService {
	return &DescriptorService{db: db, rec: rec}
}

// Get returns the connection descriptor for a tenant, gated on the
// tenant's lifecycle status. The credential secret is referenced, never
// included.
func (s *DescriptorService) Get(ctx context.Context, actor string, id model.TenantID) (model.ConnectionDescriptor, error) {
	var (
		status string
		d      model.ConnectionDescriptor
		found  bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT t.status,
		        d.tenant_id IS NOT NULL,
		        COALESCE(d.host, ''), COALESCE(d.port, 0), COALESCE(d.database_name, ''),
		        COALESCE(d.role, ''), COALESCE(d.secret_ref, ''), COALESCE(d.isolation_mode, '')
		 FROM tenants t
		 LEFT JOIN connection_descriptors d ON d.tenant_id = t.id
		 WHERE t.id = $1`, id,
	).Scan(&status, &found, &d.Host, &d.Port, &d.DatabaseName, &d.Role, &d.SecretRef, &d.IsolationMode)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ConnectionDescriptor{}, fmt.Errorf("tenant %s: %w", id, ErrTenantUnknown)
	}
	if err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("get descriptor for %s: %w", id, err)
	}

	s.rec.Record(actor, model.AuditDescriptorRead, &id, nil)

	switch status {
	case model.StatusSuspended:
		return model.ConnectionDescriptor{}, fmt.Errorf("tenant %s: %w", id, ErrTenantSuspended)
	case model.StatusDeprovisioned:
		return model.ConnectionDescriptor{}, fmt.Errorf("tenant %s: %w", id, ErrTenantDeprovisioned)
	case model.StatusProvisioning, model.StatusFailed:
		return model.ConnectionDescriptor{}, fmt.Errorf("tenant %s: %w", id, ErrTenantNotProvisioned)
	}
	if !found {
		return model.ConnectionDescriptor{}, fmt.Errorf("tenant %s has no descriptor: %w", id, ErrTenantNotProvisioned)
	}

	d.TenantID = id
	return d, nil
}

// Put stores or replaces a tenant's connection descriptor. Called only
// by the provisioner. Once a tenant has been provisioned against a
// descriptor, overwriting is rejected unless the tenant is currently
// suspended; silently repointing live traffic at a different physical
// database is the failure this guard exists to prevent.
func (s *DescriptorService) Put(ctx context.Context, actor string, d model.ConnectionDescriptor) error {
	var (
		status        string
		provisioned   bool
		hasDescriptor bool
	)
	err := s.db.QueryRow(ctx,
		`SELECT t.status, t.last_provisioned_at IS NOT NULL, d.tenant_id IS NOT NULL
		 FROM tenants t
		 LEFT JOIN connection_descriptors d ON d.tenant_id = t.id
		 WHERE t.id = $1`, d.TenantID,
	).Scan(&status, &provisioned, &hasDescriptor)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("tenant %s: %w", d.TenantID, ErrTenantUnknown)
	}
	if err != nil {
		return fmt.Errorf("check descriptor state for %s: %w", d.TenantID, err)
	}

	if hasDescriptor && provisioned && status != model.StatusSuspended {
		return fmt.Errorf("tenant %s: %w", d.TenantID, ErrDescriptorLocked)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO connection_descriptors (tenant_id, host, port, database_name, role, secret_ref, isolation_mode, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   host = EXCLUDED.host, port = EXCLUDED.port, database_name = EXCLUDED.database_name,
		   role = EXCLUDED.role, secret_ref = EXCLUDED.secret_ref, isolation_mode = EXCLUDED.isolation_mode,
		   updated_at = now()`,
		d.TenantID, d.Host, d.Port, d.DatabaseName, d.Role, d.SecretRef, d.IsolationMode,
	)
	if err != nil {
		return fmt.Errorf("store descriptor for %s: %w", d.TenantID, err)
	}

	s.rec.Record(actor, model.AuditDescriptorWrite, &d.TenantID, map[string]any{
		"host": d.Host, "port": d.Port, "database": d.DatabaseName,
	})
	return nil
}
