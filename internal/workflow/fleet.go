package workflow

import (
	"go.temporal.io/sdk/workflow"

	"github.com/arvid/tenantdb/internal/model"
)

// FleetMigrationResult reports what one fleet migration run did.
type FleetMigrationResult struct {
	Migrated int              `json:"migrated"`
	Failed   []model.TenantID `json:"failed,omitempty"`
}

// FleetMigrationWorkflow rolls the tenant schema forward across every
// active tenant. Goose only applies versions a tenant is missing, so
// already-current tenants are no-ops. One tenant failing does not stop
// the rest of the fleet.
func FleetMigrationWorkflow(ctx workflow.Context) (*FleetMigrationResult, error) {
	ctx = withDefaultActivityOptions(ctx)
	logger := workflow.GetLogger(ctx)

	var ids []model.TenantID
	err := workflow.ExecuteActivity(ctx, "ListActiveTenantIDs").Get(ctx, &ids)
	if err != nil {
		return nil, err
	}

	result := &FleetMigrationResult{}
	for _, id := range ids {
		var descriptor model.ConnectionDescriptor
		err := workflow.ExecuteActivity(ctx, "GetDescriptor", id).Get(ctx, &descriptor)
		if err != nil {
			logger.Error("fleet migration: descriptor lookup failed", "tenant", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		err = workflow.ExecuteActivity(migrationActivityCtx(ctx), "RunBaselineMigration", descriptor).Get(ctx, nil)
		if err != nil {
			logger.Error("fleet migration: schema run failed", "tenant", id, "error", err)
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Migrated++
	}
	return result, nil
}
