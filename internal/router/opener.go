package router

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/secrets"
)

// Opener turns a connection descriptor into a live pool. The cache goes
// through this interface so tests can substitute fakes for real dialing.
type Opener interface {
	Open(ctx context.Context, d model.ConnectionDescriptor) (Conn, error)
}

// PgxOpener opens pgx connection pools, resolving the descriptor's
// credential through the secret store at open time.
type PgxOpener struct {
	Secrets        secrets.Store
	MaxConns       int32
	ConnectTimeout time.Duration
}

func (o *PgxOpener) Open(ctx context.Context, d model.ConnectionDescriptor) (Conn, error) {
	password, err := o.Secrets.Get(ctx, d.SecretRef)
	if err != nil {
		return nil, fmt.Errorf("resolve credential for %s: %w", d.TenantID, err)
	}

	cfg, err := pgxpool.ParseConfig(d.DSN(password))
	if err != nil {
		return nil, fmt.Errorf("parse pool config for %s: %w", d.TenantID, err)
	}
	cfg.MaxConns = o.MaxConns
	cfg.ConnConfig.ConnectTimeout = o.ConnectTimeout

	openCtx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(openCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool for %s: %w", d.TenantID, err)
	}

	// Liveness probe before the pool is handed out.
	if err := pool.Ping(openCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("probe pool for %s: %w", d.TenantID, err)
	}

	return pgxConn{pool}, nil
}
