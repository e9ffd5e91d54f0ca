package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arvid/tenantdb/internal/model"
)

func TestNewTenantService(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	require.NotNil(t, svc)
	assert.Equal(t, db, svc.db)
}

func TestTenantCreate_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	tenant := &model.Tenant{
		ID:             "acme",
		DisplayName:    "Acme Corp",
		Status:         model.StatusProvisioning,
		ProvisionState: model.ProvisionStateRequested,
		IsolationMode:  model.IsolationDedicatedInstance,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, nil)

	err := svc.Create(ctx, tenant)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestTenantGetByID_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	now := time.Now()
	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*model.TenantID)) = "acme"
		*(dest[1].(*string)) = "Acme Corp"
		*(dest[2].(*string)) = model.StatusActive
		*(dest[3].(*string)) = model.ProvisionStateActive
		*(dest[5].(*string)) = model.IsolationDedicatedInstance
		*(dest[6].(*time.Time)) = now
		*(dest[7].(*time.Time)) = now
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{model.TenantID("acme")}).Return(row)

	tenant, err := svc.GetByID(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, model.TenantID("acme"), tenant.ID)
	assert.Equal(t, model.StatusActive, tenant.Status)
}

func TestTenantGetByID_Unknown(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{model.TenantID("ghost")}).Return(row)

	_, err := svc.GetByID(ctx, "ghost")
	require.ErrorIs(t, err, ErrTenantUnknown)
}

func TestTenantList_Pagination(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	scan := func(id string) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*model.TenantID)) = model.TenantID(id)
			*(dest[2].(*string)) = model.StatusActive
			return nil
		}
	}
	// limit+1 rows returned signals another page.
	rows := newMockRows(scan("a"), scan("b"), scan("c"))
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	tenants, hasMore, err := svc.List(ctx, "", 2, "")
	require.NoError(t, err)
	assert.True(t, hasMore)
	assert.Len(t, tenants, 2)
}

func TestTenantUpdateStatus_Unknown(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := svc.UpdateStatus(ctx, "ghost", model.StatusSuspended)
	require.ErrorIs(t, err, ErrTenantUnknown)
}

func TestTenantUpdateStatus_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"),
		[]any{model.StatusSuspended, model.TenantID("acme")}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := svc.UpdateStatus(ctx, "acme", model.StatusSuspended)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestTenantListActiveIDs(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	scan := func(id string) func(dest ...any) error {
		return func(dest ...any) error {
			*(dest[0].(*model.TenantID)) = model.TenantID(id)
			return nil
		}
	}
	rows := newMockRows(scan("acme"), scan("globex"))
	db.On("Query", ctx, mock.AnythingOfType("string"), []any{model.StatusActive}).Return(rows, nil)

	ids, err := svc.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.TenantID{"acme", "globex"}, ids)
}

func TestTenantCountByStatus(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	rows := newMockRows(
		func(dest ...any) error {
			*(dest[0].(*string)) = model.StatusActive
			*(dest[1].(*int)) = 12
			return nil
		},
		func(dest ...any) error {
			*(dest[0].(*string)) = model.StatusSuspended
			*(dest[1].(*int)) = 3
			return nil
		},
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), []any(nil)).Return(rows, nil)

	counts, err := svc.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"active": 12, "suspended": 3}, counts)
}

func TestTenantSetProvisionState_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewTenantService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := svc.SetProvisionState(ctx, "acme", model.ProvisionStateAllocating, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provision state")
}
