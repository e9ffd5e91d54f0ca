package provision

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/model"
)

const taskQueue = "tenantdb"

// provisionParams mirrors the workflow's input type; it is declared
// here to keep this package from importing the workflow package.
type provisionParams struct {
	TenantID    model.TenantID `json:"tenant_id"`
	DisplayName string         `json:"display_name"`
}

// LifecycleService is the control-plane entry point for tenant
// lifecycle changes. Provisioning runs as a Temporal workflow and the
// caller waits for the result; when no Temporal client is configured
// (single-process deployments) the same state machine runs in-process
// via the Provisioner.
type LifecycleService struct {
	logger  zerolog.Logger
	tenants TenantRegistry
	rec     *audit.Recorder
	tc      temporalclient.Client
	direct  *Provisioner
	pools   PoolEvictor
}

func NewLifecycleService(logger zerolog.Logger, tenants TenantRegistry, rec *audit.Recorder, tc temporalclient.Client, direct *Provisioner, pools PoolEvictor) *LifecycleService {
	return &LifecycleService{
		logger:  logger.With().Str("component", "lifecycle").Logger(),
		tenants: tenants,
		rec:     rec,
		tc:      tc,
		direct:  direct,
		pools:   pools,
	}
}

func workflowID(id model.TenantID) string {
	return fmt.Sprintf("tenant-%s", id)
}

// Provision creates and activates a new tenant, returning it once the
// provisioning run finished.
func (s *LifecycleService) Provision(ctx context.Context, actor string, id model.TenantID, displayName string) (*model.Tenant, error) {
	var tenant *model.Tenant
	var err error
	if s.tc == nil {
		tenant, err = s.direct.Provision(ctx, id, displayName)
	} else {
		tenant, err = s.runWorkflow(ctx, id, "ProvisionTenantWorkflow", provisionParams{
			TenantID:    id,
			DisplayName: displayName,
		})
	}
	if err != nil {
		return nil, err
	}
	s.rec.Record(actor, model.AuditTenantProvision, &id, nil)
	return tenant, nil
}

// Reprovision restarts a failed tenant's provisioning with the same ID.
func (s *LifecycleService) Reprovision(ctx context.Context, actor string, id model.TenantID) (*model.Tenant, error) {
	var tenant *model.Tenant
	var err error
	if s.tc == nil {
		tenant, err = s.direct.Reprovision(ctx, id)
	} else {
		tenant, err = s.runWorkflow(ctx, id, "ReprovisionTenantWorkflow", id)
	}
	if err != nil {
		return nil, err
	}
	s.rec.Record(actor, model.AuditTenantProvision, &id, map[string]any{"reprovision": true})
	return tenant, nil
}

// Deprovision retires a tenant and drops its cached pool. The registry
// row, descriptor and physical database are retained.
func (s *LifecycleService) Deprovision(ctx context.Context, actor string, id model.TenantID) error {
	if s.tc == nil {
		if err := s.direct.Deprovision(ctx, id); err != nil {
			return err
		}
	} else {
		run, err := s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        workflowID(id),
			TaskQueue: taskQueue,
		}, "DeprovisionTenantWorkflow", id)
		if err != nil {
			return fmt.Errorf("start DeprovisionTenantWorkflow: %w", err)
		}
		if err := run.Get(ctx, nil); err != nil {
			return err
		}
		s.evict(id)
	}
	s.rec.Record(actor, model.AuditTenantDeprovision, &id, nil)
	return nil
}

// Suspend pauses a tenant. The cached pool is evicted immediately so
// the next resolution sees the suspended status.
func (s *LifecycleService) Suspend(ctx context.Context, actor string, id model.TenantID) error {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tenant.Status != model.StatusActive {
		return fmt.Errorf("tenant %s has status %s, only active tenants can be suspended", id, tenant.Status)
	}
	if err := s.tenants.UpdateStatus(ctx, id, model.StatusSuspended); err != nil {
		return err
	}
	s.evict(id)
	s.rec.Record(actor, model.AuditTenantSuspend, &id, nil)
	return nil
}

// Resume reactivates a suspended tenant. No pool is warmed here; the
// next resolution creates one on demand.
func (s *LifecycleService) Resume(ctx context.Context, actor string, id model.TenantID) error {
	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tenant.Status != model.StatusSuspended {
		return fmt.Errorf("tenant %s has status %s, only suspended tenants can be resumed", id, tenant.Status)
	}
	if err := s.tenants.UpdateStatus(ctx, id, model.StatusActive); err != nil {
		return err
	}
	s.rec.Record(actor, model.AuditTenantResume, &id, nil)
	return nil
}

// MigrateFleet rolls pending tenant schema migrations across all active
// tenants and reports the per-tenant outcome.
func (s *LifecycleService) MigrateFleet(ctx context.Context, actor string) (*FleetResult, error) {
	var result *FleetResult
	if s.tc == nil {
		var err error
		result, err = s.direct.MigrateFleet(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		run, err := s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
			ID:        "fleet-migration",
			TaskQueue: taskQueue,
		}, "FleetMigrationWorkflow")
		if err != nil {
			return nil, fmt.Errorf("start FleetMigrationWorkflow: %w", err)
		}
		result = &FleetResult{}
		if err := run.Get(ctx, result); err != nil {
			return nil, err
		}
	}
	s.rec.Record(actor, model.AuditFleetMigration, nil, result)
	return result, nil
}

func (s *LifecycleService) runWorkflow(ctx context.Context, id model.TenantID, name string, arg any) (*model.Tenant, error) {
	run, err := s.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:        workflowID(id),
		TaskQueue: taskQueue,
	}, name, arg)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	var tenant model.Tenant
	if err := run.Get(ctx, &tenant); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (s *LifecycleService) evict(id model.TenantID) {
	if s.pools != nil {
		s.pools.Evict(id)
	}
}
