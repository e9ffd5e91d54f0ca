package workflow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/arvid/tenantdb/internal/model"
)

type FleetMigrationWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *FleetMigrationWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *FleetMigrationWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *FleetMigrationWorkflowTestSuite) TestMigratesAllActiveTenants() {
	ids := []model.TenantID{"acme", "globex"}
	dAcme := model.ConnectionDescriptor{TenantID: "acme", DatabaseName: "tenant_acme"}
	dGlobex := model.ConnectionDescriptor{TenantID: "globex", DatabaseName: "tenant_globex"}

	s.env.OnActivity("ListActiveTenantIDs", mock.Anything).Return(ids, nil)
	s.env.OnActivity("GetDescriptor", mock.Anything, model.TenantID("acme")).Return(dAcme, nil)
	s.env.OnActivity("GetDescriptor", mock.Anything, model.TenantID("globex")).Return(dGlobex, nil)
	s.env.OnActivity("RunBaselineMigration", mock.Anything, dAcme).Return(nil)
	s.env.OnActivity("RunBaselineMigration", mock.Anything, dGlobex).Return(nil)

	s.env.ExecuteWorkflow(FleetMigrationWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result FleetMigrationResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(2, result.Migrated)
	s.Empty(result.Failed)
}

func (s *FleetMigrationWorkflowTestSuite) TestOneTenantFailingDoesNotStopTheRest() {
	ids := []model.TenantID{"acme", "globex"}
	dAcme := model.ConnectionDescriptor{TenantID: "acme", DatabaseName: "tenant_acme"}
	dGlobex := model.ConnectionDescriptor{TenantID: "globex", DatabaseName: "tenant_globex"}

	s.env.OnActivity("ListActiveTenantIDs", mock.Anything).Return(ids, nil)
	s.env.OnActivity("GetDescriptor", mock.Anything, model.TenantID("acme")).Return(dAcme, nil)
	s.env.OnActivity("GetDescriptor", mock.Anything, model.TenantID("globex")).Return(dGlobex, nil)
	s.env.OnActivity("RunBaselineMigration", mock.Anything, dAcme).
		Return(fmt.Errorf("tenant db unreachable"))
	s.env.OnActivity("RunBaselineMigration", mock.Anything, dGlobex).Return(nil)

	s.env.ExecuteWorkflow(FleetMigrationWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result FleetMigrationResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Equal(1, result.Migrated)
	s.Equal([]model.TenantID{"acme"}, result.Failed)
}

func (s *FleetMigrationWorkflowTestSuite) TestNoActiveTenants() {
	s.env.OnActivity("ListActiveTenantIDs", mock.Anything).Return([]model.TenantID{}, nil)

	s.env.ExecuteWorkflow(FleetMigrationWorkflow)
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var result FleetMigrationResult
	s.NoError(s.env.GetWorkflowResult(&result))
	s.Zero(result.Migrated)
}

func TestFleetMigrationWorkflowTestSuite(t *testing.T) {
	suite.Run(t, new(FleetMigrationWorkflowTestSuite))
}
