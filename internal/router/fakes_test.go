package router

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arvid/tenantdb/internal/model"
)

// ---------- fake Conn ----------

type fakeConn struct {
	closed   atomic.Bool
	acquired atomic.Int32
	maxConns int32

	execErr error
	rowErr  error
	pingErr error
}

// fakeRow surfaces its error at Scan, like pgx rows do.
type fakeRow struct{ err error }

func (r fakeRow) Scan(_ ...any) error { return r.err }

func newFakeConn() *fakeConn {
	return &fakeConn{maxConns: 10}
}

func (f *fakeConn) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeConn) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, f.execErr
}

func (f *fakeConn) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{err: f.rowErr}
}

func (f *fakeConn) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeConn) Close()                       { f.closed.Store(true) }
func (f *fakeConn) AcquiredConns() int32         { return f.acquired.Load() }
func (f *fakeConn) TotalConns() int32            { return f.acquired.Load() }
func (f *fakeConn) MaxConns() int32              { return f.maxConns }

// ---------- fake Opener ----------

// fakeOpener counts Open calls per tenant and can be made to fail or to
// block on a gate channel.
type fakeOpener struct {
	mu      sync.Mutex
	calls   map[model.TenantID]int
	conns   map[model.TenantID]*fakeConn
	openErr error
	// When gate is non-nil, Open blocks until the gate closes. If
	// gateTenant is set, only that tenant's opens block.
	gate       chan struct{}
	gateTenant model.TenantID
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		calls: make(map[model.TenantID]int),
		conns: make(map[model.TenantID]*fakeConn),
	}
}

func (f *fakeOpener) Open(_ context.Context, d model.ConnectionDescriptor) (Conn, error) {
	f.mu.Lock()
	f.calls[d.TenantID]++
	gate := f.gate
	if f.gateTenant != "" && f.gateTenant != d.TenantID {
		gate = nil
	}
	err := f.openErr
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	conn := newFakeConn()
	f.mu.Lock()
	f.conns[d.TenantID] = conn
	f.mu.Unlock()
	return conn, nil
}

func (f *fakeOpener) callCount(id model.TenantID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeOpener) conn(id model.TenantID) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[id]
}

func (f *fakeOpener) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// ---------- fake DescriptorSource ----------

type fakeDescriptors struct {
	mu    sync.Mutex
	descs map[model.TenantID]model.ConnectionDescriptor
	errs  map[model.TenantID]error
	calls map[model.TenantID]int
}

func newFakeDescriptors() *fakeDescriptors {
	return &fakeDescriptors{
		descs: make(map[model.TenantID]model.ConnectionDescriptor),
		errs:  make(map[model.TenantID]error),
		calls: make(map[model.TenantID]int),
	}
}

func (f *fakeDescriptors) add(id model.TenantID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.descs[id] = model.ConnectionDescriptor{
		TenantID: id, Host: "db-" + string(id), Port: 5432,
		DatabaseName: "tdb_" + string(id), Role: "role_" + string(id),
		SecretRef: "secret_" + string(id), IsolationMode: model.IsolationDedicatedInstance,
	}
}

func (f *fakeDescriptors) fail(id model.TenantID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
}

func (f *fakeDescriptors) Get(_ context.Context, _ string, id model.TenantID) (model.ConnectionDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return model.ConnectionDescriptor{}, err
	}
	return f.descs[id], nil
}

func (f *fakeDescriptors) callCount(id model.TenantID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// ---------- fake StatusSource ----------

type fakeStatuses struct {
	mu       sync.Mutex
	statuses map[model.TenantID]string
}

func newFakeStatuses() *fakeStatuses {
	return &fakeStatuses{statuses: make(map[model.TenantID]string)}
}

func (f *fakeStatuses) set(id model.TenantID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

func (f *fakeStatuses) StatusesByID(_ context.Context, ids []model.TenantID) (map[model.TenantID]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[model.TenantID]string, len(ids))
	for _, id := range ids {
		if s, ok := f.statuses[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

const (
	eventuallyTimeout = 2 * time.Second
	eventuallyTick    = 10 * time.Millisecond
)

// ---------- fake GrantChecker ----------

type fakeGrants struct {
	mu      sync.Mutex
	allowed map[string]map[model.TenantID]bool
	err     error
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{allowed: make(map[string]map[model.TenantID]bool)}
}

func (f *fakeGrants) allow(principalID string, id model.TenantID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowed[principalID] == nil {
		f.allowed[principalID] = make(map[model.TenantID]bool)
	}
	f.allowed[principalID][id] = true
}

func (f *fakeGrants) Has(_ context.Context, principal model.Principal, id model.TenantID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[principal.ID][id], nil
}
