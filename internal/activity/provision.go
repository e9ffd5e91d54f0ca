package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/provision"
)

// DB defines the control-plane database operations used by activity
// structs. *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// workflowActor is the audit actor for descriptor access performed by
// workflow activities rather than a calling principal.
const workflowActor = "provision-worker"

// Provision contains the activities behind the tenant provisioning
// workflows.
type Provision struct {
	tenants     provision.TenantRegistry
	descriptors provision.DescriptorStore
	alloc       provision.Allocator
	mig         provision.Migrator
}

// NewProvision creates a new Provision activity struct.
func NewProvision(tenants provision.TenantRegistry, descriptors provision.DescriptorStore, alloc provision.Allocator, mig provision.Migrator) *Provision {
	return &Provision{tenants: tenants, descriptors: descriptors, alloc: alloc, mig: mig}
}

// CreateTenantRecordParams holds the parameters for CreateTenantRecord.
type CreateTenantRecordParams struct {
	TenantID    model.TenantID `json:"tenant_id"`
	DisplayName string         `json:"display_name"`
}

// CreateTenantRecord inserts the registry row that anchors the rest of
// the provisioning run.
func (a *Provision) CreateTenantRecord(ctx context.Context, params CreateTenantRecordParams) error {
	tenant := model.NewTenant(params.TenantID, params.DisplayName)
	if err := a.tenants.Create(ctx, tenant); err != nil {
		return fmt.Errorf("create tenant record: %w", err)
	}
	return nil
}

// SetProvisionStateParams holds the parameters for SetProvisionState.
type SetProvisionStateParams struct {
	TenantID model.TenantID `json:"tenant_id"`
	State    string         `json:"state"`
	Error    *string        `json:"error,omitempty"`
}

// SetProvisionState records a state-machine step on the tenant row.
func (a *Provision) SetProvisionState(ctx context.Context, params SetProvisionStateParams) error {
	return a.tenants.SetProvisionState(ctx, params.TenantID, params.State, params.Error)
}

// SetTenantStatusParams holds the parameters for SetTenantStatus.
type SetTenantStatusParams struct {
	TenantID model.TenantID `json:"tenant_id"`
	Status   string         `json:"status"`
}

// SetTenantStatus transitions the tenant's lifecycle status.
func (a *Provision) SetTenantStatus(ctx context.Context, params SetTenantStatusParams) error {
	return a.tenants.UpdateStatus(ctx, params.TenantID, params.Status)
}

// GetTenant retrieves a tenant by ID.
func (a *Provision) GetTenant(ctx context.Context, id model.TenantID) (*model.Tenant, error) {
	return a.tenants.GetByID(ctx, id)
}

// AllocateDatabase creates the tenant's isolated database and credential
// and returns the resulting descriptor. The credential itself goes to
// the secret store, never through workflow history.
func (a *Provision) AllocateDatabase(ctx context.Context, id model.TenantID) (model.ConnectionDescriptor, error) {
	return a.alloc.Allocate(ctx, id)
}

// StoreDescriptor writes the descriptor into the registry.
func (a *Provision) StoreDescriptor(ctx context.Context, d model.ConnectionDescriptor) error {
	return a.descriptors.Put(ctx, workflowActor, d)
}

// GetDescriptor reads a tenant's descriptor for fleet operations.
func (a *Provision) GetDescriptor(ctx context.Context, id model.TenantID) (model.ConnectionDescriptor, error) {
	return a.descriptors.Get(ctx, workflowActor, id)
}

// RunBaselineMigration applies the tenant schema to the allocated
// database. Goose tracks applied versions, so the same activity also
// rolls a tenant forward during fleet migrations.
func (a *Provision) RunBaselineMigration(ctx context.Context, d model.ConnectionDescriptor) error {
	return a.mig.Migrate(ctx, d)
}

// MarkTenantProvisioned flips the tenant to active.
func (a *Provision) MarkTenantProvisioned(ctx context.Context, id model.TenantID) error {
	return a.tenants.MarkProvisioned(ctx, id)
}

// ListActiveTenantIDs returns the IDs of all active tenants, for fleet
// migration fan-out.
func (a *Provision) ListActiveTenantIDs(ctx context.Context) ([]model.TenantID, error) {
	return a.tenants.ListActiveIDs(ctx)
}
