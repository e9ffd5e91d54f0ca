package registry

import (
	"context"
	"fmt"

	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/platform"
)

// GrantService manages per-tenant access grants in the control plane.
type GrantService struct {
	db  DB
	rec *audit.Recorder
}

func NewGrantService(db DB, rec *audit.Recorder) *GrantService {
	return &GrantService{db: db, rec: rec}
}

func (s *GrantService) Create(ctx context.Context, actor, principalID string, tenantID model.TenantID) (*model.AccessGrant, error) {
	grant := &model.AccessGrant{
		ID:          platform.NewID(),
		PrincipalID: principalID,
		TenantID:    tenantID,
		GrantedBy:   actor,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO access_grants (id, principal_id, tenant_id, granted_by, created_at)
		 VALUES ($1, $2, $3, $4, now())
		 RETURNING created_at`,
		grant.ID, grant.PrincipalID, grant.TenantID, grant.GrantedBy,
	).Scan(&grant.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert access grant: %w", err)
	}

	s.rec.Record(actor, model.AuditGrantCreate, &tenantID, map[string]string{"principal": principalID})
	return grant, nil
}

func (s *GrantService) Revoke(ctx context.Context, actor, principalID string, tenantID model.TenantID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE access_grants SET revoked_at = now()
		 WHERE principal_id = $1 AND tenant_id = $2 AND revoked_at IS NULL`,
		principalID, tenantID,
	)
	if err != nil {
		return fmt.Errorf("revoke access grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no active grant for principal %s on tenant %s", principalID, tenantID)
	}

	s.rec.Record(actor, model.AuditGrantRevoke, &tenantID, map[string]string{"principal": principalID})
	return nil
}

// Has reports whether the principal holds an unrevoked grant for the
// tenant. Principals with the tenants:* scope bypass the lookup.
func (s *GrantService) Has(ctx context.Context, principal model.Principal, tenantID model.TenantID) (bool, error) {
	if principal.HasScope(model.ScopeAllTenants) {
		return true, nil
	}

	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM access_grants
		 WHERE principal_id = $1 AND tenant_id = $2 AND revoked_at IS NULL`,
		principal.ID, tenantID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check access grant: %w", err)
	}
	return n > 0, nil
}

// ListByTenant returns active grants for a tenant.
func (s *GrantService) ListByTenant(ctx context.Context, tenantID model.TenantID) ([]model.AccessGrant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, principal_id, tenant_id, granted_by, created_at, revoked_at
		 FROM access_grants WHERE tenant_id = $1 AND revoked_at IS NULL ORDER BY created_at`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list grants for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var grants []model.AccessGrant
	for rows.Next() {
		var g model.AccessGrant
		if err := rows.Scan(&g.ID, &g.PrincipalID, &g.TenantID, &g.GrantedBy, &g.CreatedAt, &g.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}
