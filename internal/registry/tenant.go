package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/arvid/tenantdb/internal/model"
)

const tenantColumns = `id, display_name, status, provision_state, provision_error, isolation_mode, created_at, updated_at, last_provisioned_at`

// TenantService reads and writes the control-plane tenant registry.
type TenantService struct {
	db DB
}

func NewTenantService(db DB) *TenantService {
	return &TenantService{db: db}
}

func (s *TenantService) Create(ctx context.Context, tenant *model.Tenant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO tenants (id, display_name, status, provision_state, isolation_mode, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tenant.ID, tenant.DisplayName, tenant.Status, tenant.ProvisionState,
		tenant.IsolationMode, tenant.CreatedAt, tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

func (s *TenantService) GetByID(ctx context.Context, id model.TenantID) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.DisplayName, &t.Status, &t.ProvisionState, &t.ProvisionError,
		&t.IsolationMode, &t.CreatedAt, &t.UpdatedAt, &t.LastProvisionedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tenant %s: %w", id, ErrTenantUnknown)
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return &t, nil
}

func (s *TenantService) List(ctx context.Context, status string, limit int, cursor string) ([]model.Tenant, bool, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants`
	args := []any{}
	argIdx := 1

	where := ""
	if status != "" {
		where = fmt.Sprintf(` WHERE status = $%d`, argIdx)
		args = append(args, status)
		argIdx++
	}
	if cursor != "" {
		if where == "" {
			where = fmt.Sprintf(` WHERE id > $%d`, argIdx)
		} else {
			where += fmt.Sprintf(` AND id > $%d`, argIdx)
		}
		args = append(args, cursor)
		argIdx++
	}
	query += where
	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.DisplayName, &t.Status, &t.ProvisionState, &t.ProvisionError,
			&t.IsolationMode, &t.CreatedAt, &t.UpdatedAt, &t.LastProvisionedAt); err != nil {
			return nil, false, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate tenants: %w", err)
	}

	hasMore := len(tenants) > limit
	if hasMore {
		tenants = tenants[:limit]
	}
	return tenants, hasMore, nil
}

// ListActiveIDs returns the IDs of all active tenants, used by the
// fleet migration workflow and the idle sweeper's status cross-check.
func (s *TenantService) ListActiveIDs(ctx context.Context) ([]model.TenantID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM tenants WHERE status = $1 ORDER BY id`, model.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var ids []model.TenantID
	for rows.Next() {
		var id model.TenantID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant ids: %w", err)
	}
	return ids, nil
}

// StatusesByID returns the lifecycle status for each of the given
// tenants. IDs with no registry row are absent from the result.
func (s *TenantService) StatusesByID(ctx context.Context, ids []model.TenantID) (map[model.TenantID]string, error) {
	if len(ids) == 0 {
		return map[model.TenantID]string{}, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	rows, err := s.db.Query(ctx, `SELECT id, status FROM tenants WHERE id = ANY($1)`, raw)
	if err != nil {
		return nil, fmt.Errorf("lookup tenant statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[model.TenantID]string, len(ids))
	for rows.Next() {
		var id model.TenantID
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan tenant status: %w", err)
		}
		statuses[id] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant statuses: %w", err)
	}
	return statuses, nil
}

func (s *TenantService) UpdateDisplayName(ctx context.Context, id model.TenantID, displayName string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE tenants SET display_name = $1, updated_at = now() WHERE id = $2`,
		displayName, id,
	)
	if err != nil {
		return fmt.Errorf("update tenant %s display name: %w", id, err)
	}
	return nil
}

// UpdateStatus transitions a tenant's lifecycle status.
func (s *TenantService) UpdateStatus(ctx context.Context, id model.TenantID, status string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tenants SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set tenant %s status to %s: %w", id, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %s: %w", id, ErrTenantUnknown)
	}
	return nil
}

// SetProvisionState records a provisioning state-machine step. A nil
// provisionErr clears any previous error.
func (s *TenantService) SetProvisionState(ctx context.Context, id model.TenantID, state string, provisionErr *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE tenants SET provision_state = $1, provision_error = $2, updated_at = now() WHERE id = $3`,
		state, provisionErr, id,
	)
	if err != nil {
		return fmt.Errorf("set tenant %s provision state to %s: %w", id, state, err)
	}
	return nil
}

// MarkProvisioned flips a tenant to active and stamps last_provisioned_at.
func (s *TenantService) MarkProvisioned(ctx context.Context, id model.TenantID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE tenants SET status = $1, provision_state = $2, provision_error = NULL,
		        last_provisioned_at = now(), updated_at = now()
		 WHERE id = $3`,
		model.StatusActive, model.ProvisionStateActive, id,
	)
	if err != nil {
		return fmt.Errorf("mark tenant %s provisioned: %w", id, err)
	}
	return nil
}

// CountByStatus returns tenant counts keyed by status for the system
// info endpoint.
func (s *TenantService) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, count(*) FROM tenants GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count tenants by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan tenant count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenant counts: %w", err)
	}
	return counts, nil
}
