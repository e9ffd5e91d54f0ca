package router

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arvid/tenantdb/internal/model"
)

// Conn is the subset of *pgxpool.Pool the router needs. It exists so
// the cache and handle can be exercised against fakes in tests.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
	AcquiredConns() int32
	TotalConns() int32
	MaxConns() int32
}

// pgxConn adapts *pgxpool.Pool to Conn.
type pgxConn struct {
	*pgxpool.Pool
}

func (c pgxConn) AcquiredConns() int32 { return c.Pool.Stat().AcquiredConns() }
func (c pgxConn) TotalConns() int32    { return c.Pool.Stat().TotalConns() }
func (c pgxConn) MaxConns() int32      { return c.Pool.Stat().MaxConns() }

// Pool is one tenant's live connection pool plus the bookkeeping the
// cache needs for idle eviction and health reporting. At most one Pool
// exists per tenant per process.
type Pool struct {
	tenantID model.TenantID
	conn     Conn

	lastUsed atomic.Int64 // unix nanos
	degraded atomic.Bool  // last operation errored
}

func newPool(tenantID model.TenantID, conn Conn) *Pool {
	p := &Pool{tenantID: tenantID, conn: conn}
	p.touch()
	return p
}

func (p *Pool) TenantID() model.TenantID { return p.tenantID }

func (p *Pool) touch() {
	p.lastUsed.Store(time.Now().UnixNano())
}

func (p *Pool) lastUsedAt() time.Time {
	return time.Unix(0, p.lastUsed.Load())
}

func (p *Pool) idleFor(now time.Time) time.Duration {
	return now.Sub(p.lastUsedAt())
}

// inUse reports whether any connection is currently acquired. The
// sweeper never evicts a pool with requests in flight.
func (p *Pool) inUse() bool {
	return p.conn.AcquiredConns() > 0
}

func (p *Pool) health() string {
	if p.degraded.Load() {
		return model.HealthDegraded
	}
	return model.HealthHealthy
}

func (p *Pool) recordResult(err error) {
	p.degraded.Store(err != nil)
}

// close drains and closes the underlying pool. pgxpool.Close blocks
// until all acquired connections are released, so when close returns
// every connection is gone.
func (p *Pool) close() {
	p.conn.Close()
}
