package workflow

import (
	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/arvid/tenantdb/internal/activity"
	"github.com/arvid/tenantdb/internal/model"
)

// registerActivities registers activity structs with the test workflow
// environment so parameter and return types deserialize correctly. All
// activities are mocked via OnActivity; registration only supplies the
// type information.
func registerActivities(env *testsuite.TestWorkflowEnvironment) {
	env.RegisterActivity(&activity.Provision{})
	env.RegisterActivity(&activity.Archive{})
}

// matchFailedState matches the SetProvisionState call that records a
// failure: state failed and a non-nil error message. The exact message
// includes Temporal's activity error wrapping, which is not predictable
// in tests.
func matchFailedState(id model.TenantID) interface{} {
	return mock.MatchedBy(func(params activity.SetProvisionStateParams) bool {
		return params.TenantID == id &&
			params.State == model.ProvisionStateFailed &&
			params.Error != nil
	})
}
