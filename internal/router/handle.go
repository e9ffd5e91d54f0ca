package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arvid/tenantdb/internal/model"
)

// TenantHandle is the only way application code reaches a tenant's
// database. It closes over exactly one tenant's pool and exposes
// nothing that could address another tenant or the control plane; a
// handle for tenant A is structurally incapable of touching tenant B.
type TenantHandle struct {
	tenantID model.TenantID
	pool     *Pool
}

func newTenantHandle(p *Pool) *TenantHandle {
	return &TenantHandle{tenantID: p.tenantID, pool: p}
}

// TenantID identifies which tenant the handle is bound to.
func (h *TenantHandle) TenantID() model.TenantID { return h.tenantID }

func (h *TenantHandle) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	if err := h.acquireCheck(); err != nil {
		return pgconn.CommandTag{}, err
	}
	h.pool.touch()
	tag, err := h.pool.conn.Exec(ctx, sql, arguments...)
	h.pool.recordResult(err)
	return tag, err
}

func (h *TenantHandle) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := h.acquireCheck(); err != nil {
		return nil, err
	}
	h.pool.touch()
	rows, err := h.pool.conn.Query(ctx, sql, args...)
	h.pool.recordResult(err)
	return rows, err
}

func (h *TenantHandle) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := h.acquireCheck(); err != nil {
		return errRow{err}
	}
	h.pool.touch()
	return trackedRow{pool: h.pool, row: h.pool.conn.QueryRow(ctx, sql, args...)}
}

func (h *TenantHandle) Ping(ctx context.Context) error {
	h.pool.touch()
	err := h.pool.conn.Ping(ctx)
	h.pool.recordResult(err)
	return err
}

// errRow satisfies pgx.Row for a query that never ran.
type errRow struct{ err error }

func (r errRow) Scan(_ ...any) error { return r.err }

// trackedRow feeds the scan outcome into pool health, since pgx defers
// QueryRow errors until Scan. ErrNoRows is a normal outcome, not a
// connection problem.
type trackedRow struct {
	pool *Pool
	row  pgx.Row
}

func (r trackedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		r.pool.recordResult(nil)
	} else {
		r.pool.recordResult(err)
	}
	return err
}

// acquireCheck fails fast when every connection is already in use
// instead of queueing the caller behind a saturated pool.
func (h *TenantHandle) acquireCheck() error {
	if h.pool.conn.AcquiredConns() >= h.pool.conn.MaxConns() {
		return fmt.Errorf("tenant %s: %w", h.tenantID, ErrPoolExhausted)
	}
	return nil
}
