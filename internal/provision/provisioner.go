package provision

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/model"
)

const provisionActor = "provisioner"

// TenantRegistry is the slice of the tenant registry the provisioner
// writes through.
type TenantRegistry interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	GetByID(ctx context.Context, id model.TenantID) (*model.Tenant, error)
	ListActiveIDs(ctx context.Context) ([]model.TenantID, error)
	SetProvisionState(ctx context.Context, id model.TenantID, state string, provisionErr *string) error
	MarkProvisioned(ctx context.Context, id model.TenantID) error
	UpdateStatus(ctx context.Context, id model.TenantID, status string) error
}

// DescriptorStore reads and writes connection descriptors on the
// provisioner's behalf.
type DescriptorStore interface {
	Get(ctx context.Context, actor string, id model.TenantID) (model.ConnectionDescriptor, error)
	Put(ctx context.Context, actor string, d model.ConnectionDescriptor) error
}

// PoolEvictor drops a tenant's cached pool. The router's pool cache
// satisfies this.
type PoolEvictor interface {
	Evict(id model.TenantID)
}

// Provisioner drives a tenant through the provisioning state machine:
// requested, allocating, migrating, active. Any step failure lands the
// tenant in failed with the step error recorded; a pool is never warmed
// before the tenant is active, because the descriptor read path refuses
// non-active tenants.
type Provisioner struct {
	logger      zerolog.Logger
	tenants     TenantRegistry
	descriptors DescriptorStore
	alloc       Allocator
	mig         Migrator
	pools       PoolEvictor
}

func NewProvisioner(logger zerolog.Logger, tenants TenantRegistry, descriptors DescriptorStore, alloc Allocator, mig Migrator, pools PoolEvictor) *Provisioner {
	return &Provisioner{
		logger:      logger.With().Str("component", "provisioner").Logger(),
		tenants:     tenants,
		descriptors: descriptors,
		alloc:       alloc,
		mig:         mig,
		pools:       pools,
	}
}

// Provision creates the registry record and runs the machine to
// completion, returning the active tenant.
func (p *Provisioner) Provision(ctx context.Context, id model.TenantID, displayName string) (*model.Tenant, error) {
	if err := p.tenants.Create(ctx, model.NewTenant(id, displayName)); err != nil {
		return nil, fmt.Errorf("register tenant %s: %w", id, err)
	}
	return p.run(ctx, id)
}

// Reprovision restarts a failed tenant at the allocating step, keeping
// the same tenant ID. Allocation drops whatever the failed attempt left
// behind.
func (p *Provisioner) Reprovision(ctx context.Context, id model.TenantID) (*model.Tenant, error) {
	tenant, err := p.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenant.Status != model.StatusFailed {
		return nil, fmt.Errorf("tenant %s has status %s: %w", id, tenant.Status, ErrNotReprovisionable)
	}
	if err := p.tenants.UpdateStatus(ctx, id, model.StatusProvisioning); err != nil {
		return nil, err
	}
	return p.run(ctx, id)
}

// Deprovision retires a tenant: status flips to deprovisioned and the
// cached pool is evicted so in-flight handles are the last traffic the
// database sees. The registry row, descriptor and physical database are
// all retained.
func (p *Provisioner) Deprovision(ctx context.Context, id model.TenantID) error {
	if err := p.tenants.UpdateStatus(ctx, id, model.StatusDeprovisioned); err != nil {
		return err
	}
	if p.pools != nil {
		p.pools.Evict(id)
	}
	p.logger.Info().Str("tenant", id.String()).Msg("tenant deprovisioned")
	return nil
}

// FleetResult reports what one fleet migration run did.
type FleetResult struct {
	Migrated int              `json:"migrated"`
	Failed   []model.TenantID `json:"failed,omitempty"`
}

// MigrateFleet runs pending schema migrations against every active
// tenant database. Goose only applies versions a tenant is missing, so
// already-current tenants are no-ops. One tenant failing does not stop
// the rest.
func (p *Provisioner) MigrateFleet(ctx context.Context) (*FleetResult, error) {
	ids, err := p.tenants.ListActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}

	result := &FleetResult{}
	for _, id := range ids {
		descriptor, err := p.descriptors.Get(ctx, provisionActor, id)
		if err != nil {
			p.logger.Error().Err(err).Str("tenant", id.String()).Msg("fleet migration: descriptor lookup failed")
			result.Failed = append(result.Failed, id)
			continue
		}
		if err := p.mig.Migrate(ctx, descriptor); err != nil {
			p.logger.Error().Err(err).Str("tenant", id.String()).Msg("fleet migration: schema run failed")
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Migrated++
	}
	p.logger.Info().Int("migrated", result.Migrated).Int("failed", len(result.Failed)).Msg("fleet migration finished")
	return result, nil
}

func (p *Provisioner) run(ctx context.Context, id model.TenantID) (*model.Tenant, error) {
	if err := p.tenants.SetProvisionState(ctx, id, model.ProvisionStateAllocating, nil); err != nil {
		return nil, err
	}
	descriptor, err := p.alloc.Allocate(ctx, id)
	if err != nil {
		return nil, p.fail(ctx, id, fmt.Errorf("allocate: %w", err))
	}
	if err := p.descriptors.Put(ctx, provisionActor, descriptor); err != nil {
		return nil, p.fail(ctx, id, fmt.Errorf("store descriptor: %w", err))
	}

	if err := p.tenants.SetProvisionState(ctx, id, model.ProvisionStateMigrating, nil); err != nil {
		return nil, err
	}
	if err := p.mig.Migrate(ctx, descriptor); err != nil {
		return nil, p.fail(ctx, id, fmt.Errorf("migrate: %w", err))
	}

	if err := p.tenants.MarkProvisioned(ctx, id); err != nil {
		return nil, err
	}
	p.logger.Info().Str("tenant", id.String()).Msg("tenant provisioned")
	return p.tenants.GetByID(ctx, id)
}

// fail records the step error on the tenant and returns it wrapped in
// ErrProvisioningFailed. The recording is best effort; the step error
// is what the caller needs.
func (p *Provisioner) fail(ctx context.Context, id model.TenantID, stepErr error) error {
	msg := stepErr.Error()
	if err := p.tenants.SetProvisionState(ctx, id, model.ProvisionStateFailed, &msg); err != nil {
		p.logger.Error().Err(err).Str("tenant", id.String()).Msg("record provision failure state")
	}
	if err := p.tenants.UpdateStatus(ctx, id, model.StatusFailed); err != nil {
		p.logger.Error().Err(err).Str("tenant", id.String()).Msg("record failed status")
	}
	p.logger.Error().Err(stepErr).Str("tenant", id.String()).Msg("provisioning failed")
	return fmt.Errorf("tenant %s: %w: %w", id, ErrProvisioningFailed, stepErr)
}
