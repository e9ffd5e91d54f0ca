package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/arvid/tenantdb/internal/activity"
)

// AuditArchiveParams holds the input for AuditArchiveWorkflow.
type AuditArchiveParams struct {
	Retention time.Duration `json:"retention"`
}

// AuditArchiveWorkflow runs on a cron schedule and moves audit entries
// older than the retention window to object storage.
func AuditArchiveWorkflow(ctx workflow.Context, params AuditArchiveParams) (*activity.ArchiveAuditLogsResult, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	cutoff := workflow.Now(ctx).Add(-params.Retention)
	var result activity.ArchiveAuditLogsResult
	err := workflow.ExecuteActivity(ctx, "ArchiveAuditLogs", activity.ArchiveAuditLogsParams{
		Before: cutoff,
	}).Get(ctx, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
