package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalclient "go.temporal.io/sdk/client"
	temporalmocks "go.temporal.io/sdk/mocks"

	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/model"
)

type auditSink struct {
	events []string
}

func (a *auditSink) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	a.events = append(a.events, args[1].(string))
	return pgconn.CommandTag{}, nil
}

func newLifecycleFixture(tc *temporalmocks.Client) (*LifecycleService, *fakeRegistry, *fakeEvictor, *auditSink, *audit.Recorder) {
	reg := newFakeRegistry()
	pools := &fakeEvictor{}
	sink := &auditSink{}
	rec := audit.NewRecorder(sink, zerolog.Nop())
	direct := NewProvisioner(zerolog.Nop(), reg, &fakeDescriptorWriter{}, &fakeAllocator{}, &fakeMigrator{}, pools)
	// A typed nil inside the interface would defeat the s.tc == nil check.
	var client temporalclient.Client
	if tc != nil {
		client = tc
	}
	svc := NewLifecycleService(zerolog.Nop(), reg, rec, client, direct, pools)
	return svc, reg, pools, sink, rec
}

func TestLifecycle_ProvisionViaWorkflow(t *testing.T) {
	tc := &temporalmocks.Client{}
	svc, _, _, sink, rec := newLifecycleFixture(tc)

	active := model.Tenant{ID: "acme", Status: model.StatusActive, ProvisionState: model.ProvisionStateActive}
	run := &temporalmocks.WorkflowRun{}
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(1).(*model.Tenant) = active
	}).Return(nil)
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "ProvisionTenantWorkflow", mock.Anything).Return(run, nil)

	tenant, err := svc.Provision(context.Background(), "admin-key-1", "acme", "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, tenant.Status)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditTenantProvision)
	tc.AssertExpectations(t)
}

func TestLifecycle_ProvisionWorkflowStartFailure(t *testing.T) {
	tc := &temporalmocks.Client{}
	svc, _, _, _, rec := newLifecycleFixture(tc)
	defer rec.Close()

	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "ProvisionTenantWorkflow", mock.Anything).
		Return(nil, errors.New("temporal down"))

	_, err := svc.Provision(context.Background(), "admin-key-1", "acme", "Acme Corp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start ProvisionTenantWorkflow")
}

func TestLifecycle_ProvisionDirectWhenNoTemporal(t *testing.T) {
	svc, reg, _, sink, rec := newLifecycleFixture(nil)

	tenant, err := svc.Provision(context.Background(), "admin-key-1", "acme", "Acme Corp")
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, tenant.Status)
	assert.Equal(t, model.StatusActive, reg.tenants["acme"].Status)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditTenantProvision)
}

func TestLifecycle_DeprovisionEvictsPool(t *testing.T) {
	tc := &temporalmocks.Client{}
	svc, reg, pools, sink, rec := newLifecycleFixture(tc)

	reg.tenants["acme"] = &model.Tenant{ID: "acme", Status: model.StatusActive}

	run := &temporalmocks.WorkflowRun{}
	run.On("Get", mock.Anything, mock.Anything).Return(nil)
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "DeprovisionTenantWorkflow", mock.Anything).Return(run, nil)

	require.NoError(t, svc.Deprovision(context.Background(), "admin-key-1", "acme"))
	assert.Equal(t, []model.TenantID{"acme"}, pools.evicted)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditTenantDeprovision)
}

func TestLifecycle_SuspendEvictsAndAudits(t *testing.T) {
	svc, reg, pools, sink, rec := newLifecycleFixture(nil)
	reg.tenants["acme"] = &model.Tenant{ID: "acme", Status: model.StatusActive}

	require.NoError(t, svc.Suspend(context.Background(), "admin-key-1", "acme"))
	assert.Equal(t, model.StatusSuspended, reg.tenants["acme"].Status)
	assert.Equal(t, []model.TenantID{"acme"}, pools.evicted)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditTenantSuspend)
}

func TestLifecycle_SuspendRejectsNonActive(t *testing.T) {
	svc, reg, pools, _, rec := newLifecycleFixture(nil)
	defer rec.Close()
	reg.tenants["acme"] = &model.Tenant{ID: "acme", Status: model.StatusFailed}

	require.Error(t, svc.Suspend(context.Background(), "admin-key-1", "acme"))
	assert.Empty(t, pools.evicted)
}

func TestLifecycle_ResumeDoesNotWarmPool(t *testing.T) {
	svc, reg, pools, sink, rec := newLifecycleFixture(nil)
	reg.tenants["acme"] = &model.Tenant{ID: "acme", Status: model.StatusSuspended}

	require.NoError(t, svc.Resume(context.Background(), "admin-key-1", "acme"))
	assert.Equal(t, model.StatusActive, reg.tenants["acme"].Status)
	assert.Empty(t, pools.evicted)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditTenantResume)
}

func TestLifecycle_ResumeRejectsNonSuspended(t *testing.T) {
	svc, reg, _, _, rec := newLifecycleFixture(nil)
	defer rec.Close()
	reg.tenants["acme"] = &model.Tenant{ID: "acme", Status: model.StatusActive}

	require.Error(t, svc.Resume(context.Background(), "admin-key-1", "acme"))
}

func TestLifecycle_MigrateFleetViaWorkflow(t *testing.T) {
	tc := &temporalmocks.Client{}
	svc, _, _, sink, rec := newLifecycleFixture(tc)

	run := &temporalmocks.WorkflowRun{}
	run.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(1).(*FleetResult) = FleetResult{Migrated: 3, Failed: []model.TenantID{"globex"}}
	}).Return(nil)
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "FleetMigrationWorkflow").Return(run, nil)

	result, err := svc.MigrateFleet(context.Background(), "admin-key-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Migrated)
	assert.Equal(t, []model.TenantID{"globex"}, result.Failed)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditFleetMigration)
	tc.AssertExpectations(t)
}

func TestLifecycle_MigrateFleetDirectWhenNoTemporal(t *testing.T) {
	svc, _, _, sink, rec := newLifecycleFixture(nil)

	_, err := svc.Provision(context.Background(), "admin-key-1", "acme", "Acme Corp")
	require.NoError(t, err)

	result, err := svc.MigrateFleet(context.Background(), "admin-key-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Migrated)

	rec.Close()
	assert.Contains(t, sink.events, model.AuditFleetMigration)
}
