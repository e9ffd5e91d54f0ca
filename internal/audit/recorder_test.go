package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvid/tenantdb/internal/model"
)

// captureDB records every Exec call.
type captureDB struct {
	mu    sync.Mutex
	calls [][]any
}

func (c *captureDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, args)
	return pgconn.CommandTag{}, nil
}

func TestRecorder_WritesEntries(t *testing.T) {
	db := &captureDB{}
	r := NewRecorder(db, zerolog.Nop())

	tid := model.TenantID("acme")
	r.Record("admin-key-1", model.AuditResolveDenied, &tid, map[string]string{"reason": "no grant"})
	r.Record("provisioner", model.AuditDescriptorWrite, &tid, nil)
	r.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	require.Len(t, db.calls, 2)
	assert.Equal(t, "admin-key-1", db.calls[0][0])
	assert.Equal(t, model.AuditResolveDenied, db.calls[0][1])
	assert.Equal(t, &tid, db.calls[0][2])
	assert.Equal(t, "provisioner", db.calls[1][0])
}

// gateDB blocks every Exec until the gate closes, so tests can hold
// the writer goroutine mid-insert and fill the buffer behind it. It
// signals entered when an Exec starts, so tests know the writer has
// taken an entry off the buffer.
type gateDB struct {
	captureDB
	entered chan struct{}
	gate    chan struct{}
}

func newGateDB() *gateDB {
	return &gateDB{entered: make(chan struct{}, 16), gate: make(chan struct{})}
}

func (g *gateDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.captureDB.Exec(ctx, sql, args...)
}

func TestRecord_DropsWhenBufferFull(t *testing.T) {
	db := newGateDB()
	r := newRecorder(db, zerolog.Nop(), 1)

	// First entry is taken by the writer and held at the gate, second
	// fills the buffer, third has nowhere to go.
	r.Record("actor", model.AuditResolveAllowed, nil, nil)
	<-db.entered
	r.Record("actor", model.AuditResolveAllowed, nil, nil)
	r.Record("actor", model.AuditResolveAllowed, nil, nil)

	close(db.gate)
	r.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Len(t, db.calls, 2, "overflow entry dropped")
}

func TestMustRecord_BlocksInsteadOfDropping(t *testing.T) {
	db := newGateDB()
	r := newRecorder(db, zerolog.Nop(), 1)

	tid := model.TenantID("acme")
	r.Record("actor", model.AuditResolveAllowed, nil, nil)
	<-db.entered
	r.Record("actor", model.AuditResolveAllowed, nil, nil)

	enqueued := make(chan struct{})
	go func() {
		r.MustRecord("intruder", model.AuditResolveDenied, &tid, nil)
		close(enqueued)
	}()

	select {
	case <-enqueued:
		t.Fatal("MustRecord returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(db.gate)
	select {
	case <-enqueued:
	case <-time.After(time.Second):
		t.Fatal("MustRecord did not complete after the writer drained")
	}
	r.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	require.Len(t, db.calls, 3, "nothing dropped")
	assert.Equal(t, model.AuditResolveDenied, db.calls[2][1])
}

func TestRecorder_CloseFlushesBuffer(t *testing.T) {
	db := &captureDB{}
	r := NewRecorder(db, zerolog.Nop())

	for i := 0; i < 100; i++ {
		r.Record("actor", model.AuditResolveAllowed, nil, nil)
	}
	r.Close()

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Len(t, db.calls, 100)
}
