package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/arvid/tenantdb/internal/activity"
	"github.com/arvid/tenantdb/internal/model"
)

// TaskQueue is the Temporal task queue shared by the API and the worker.
const TaskQueue = "tenantdb"

// ProvisionTenantParams holds the input for ProvisionTenantWorkflow.
type ProvisionTenantParams struct {
	TenantID    model.TenantID `json:"tenant_id"`
	DisplayName string         `json:"display_name"`
}

// ProvisionTenantWorkflow drives a new tenant through the provisioning
// state machine: requested, allocating, migrating, active. Any step
// failure lands the tenant in failed with the error recorded.
func ProvisionTenantWorkflow(ctx workflow.Context, params ProvisionTenantParams) (*model.Tenant, error) {
	ctx = withDefaultActivityOptions(ctx)

	err := workflow.ExecuteActivity(ctx, "CreateTenantRecord", activity.CreateTenantRecordParams{
		TenantID:    params.TenantID,
		DisplayName: params.DisplayName,
	}).Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	return runProvisioning(ctx, params.TenantID)
}

// ReprovisionTenantWorkflow restarts a failed tenant at the allocating
// step, keeping the same tenant ID. Allocation drops whatever the
// failed attempt left behind.
func ReprovisionTenantWorkflow(ctx workflow.Context, tenantID model.TenantID) (*model.Tenant, error) {
	ctx = withDefaultActivityOptions(ctx)

	var tenant model.Tenant
	err := workflow.ExecuteActivity(ctx, "GetTenant", tenantID).Get(ctx, &tenant)
	if err != nil {
		return nil, err
	}
	if tenant.Status != model.StatusFailed {
		return nil, fmt.Errorf("tenant %s has status %s, only failed tenants can be re-provisioned", tenantID, tenant.Status)
	}

	err = workflow.ExecuteActivity(ctx, "SetTenantStatus", activity.SetTenantStatusParams{
		TenantID: tenantID,
		Status:   model.StatusProvisioning,
	}).Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	return runProvisioning(ctx, tenantID)
}

// DeprovisionTenantWorkflow retires a tenant. The registry row,
// descriptor and physical database are all retained; only the status
// changes, which stops new pool creation everywhere.
func DeprovisionTenantWorkflow(ctx workflow.Context, tenantID model.TenantID) error {
	ctx = withDefaultActivityOptions(ctx)

	return workflow.ExecuteActivity(ctx, "SetTenantStatus", activity.SetTenantStatusParams{
		TenantID: tenantID,
		Status:   model.StatusDeprovisioned,
	}).Get(ctx, nil)
}

// runProvisioning is the shared allocate-migrate-activate tail of the
// provisioning workflows.
func runProvisioning(ctx workflow.Context, tenantID model.TenantID) (*model.Tenant, error) {
	err := workflow.ExecuteActivity(ctx, "SetProvisionState", activity.SetProvisionStateParams{
		TenantID: tenantID,
		State:    model.ProvisionStateAllocating,
	}).Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	var descriptor model.ConnectionDescriptor
	err = workflow.ExecuteActivity(ctx, "AllocateDatabase", tenantID).Get(ctx, &descriptor)
	if err != nil {
		_ = setTenantFailed(ctx, tenantID, err)
		return nil, err
	}

	err = workflow.ExecuteActivity(ctx, "StoreDescriptor", descriptor).Get(ctx, nil)
	if err != nil {
		_ = setTenantFailed(ctx, tenantID, err)
		return nil, err
	}

	err = workflow.ExecuteActivity(ctx, "SetProvisionState", activity.SetProvisionStateParams{
		TenantID: tenantID,
		State:    model.ProvisionStateMigrating,
	}).Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	// Schema runs get a longer leash than bookkeeping activities.
	err = workflow.ExecuteActivity(migrationActivityCtx(ctx), "RunBaselineMigration", descriptor).Get(ctx, nil)
	if err != nil {
		_ = setTenantFailed(ctx, tenantID, err)
		return nil, err
	}

	err = workflow.ExecuteActivity(ctx, "MarkTenantProvisioned", tenantID).Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	var tenant model.Tenant
	err = workflow.ExecuteActivity(ctx, "GetTenant", tenantID).Get(ctx, &tenant)
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

func withDefaultActivityOptions(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    1 * time.Second,
			MaximumInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

func migrationActivityCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout:    2 * time.Minute,
		ScheduleToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    3,
			InitialInterval:    5 * time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})
}

// setTenantFailed records a provisioning failure on the tenant. Callers
// typically ignore its error since the step error is what matters.
func setTenantFailed(ctx workflow.Context, tenantID model.TenantID, stepErr error) error {
	msg := stepErr.Error()
	err := workflow.ExecuteActivity(ctx, "SetProvisionState", activity.SetProvisionStateParams{
		TenantID: tenantID,
		State:    model.ProvisionStateFailed,
		Error:    &msg,
	}).Get(ctx, nil)
	if err != nil {
		return err
	}
	return workflow.ExecuteActivity(ctx, "SetTenantStatus", activity.SetTenantStatusParams{
		TenantID: tenantID,
		Status:   model.StatusFailed,
	}).Get(ctx, nil)
}
