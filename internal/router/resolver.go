package router

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/metrics"
	"github.com/arvid/tenantdb/internal/model"
)

// GrantChecker validates a principal's access grant for a tenant
// against the control-plane store.
type GrantChecker interface {
	Has(ctx context.Context, principal model.Principal, tenantID model.TenantID) (bool, error)
}

// Resolver is the public entry point for tenant-scoped data access:
// grant check, then pool cache, then a handle bound to that one tenant.
type Resolver struct {
	logger     zerolog.Logger
	cache      *Cache
	grants     GrantChecker
	rec        *audit.Recorder
	sampleRate float64
}

// NewResolver creates a Resolver. sampleRate is the fraction of allowed
// resolutions written to the audit trail; denied resolutions are always
// audited.
func NewResolver(logger zerolog.Logger, cache *Cache, grants GrantChecker, rec *audit.Recorder, sampleRate float64) *Resolver {
	return &Resolver{
		logger:     logger.With().Str("component", "tenant-resolver").Logger(),
		cache:      cache,
		grants:     grants,
		rec:        rec,
		sampleRate: sampleRate,
	}
}

// Resolve returns a handle bound to the tenant's pool, or an error from
// the taxonomy: ErrAccessDenied, or whatever the registry and pool
// cache surfaced (tenant-state errors, ErrTenantConnectionFailed).
// Nothing is retried here.
func (r *Resolver) Resolve(ctx context.Context, principal model.Principal, id model.TenantID) (*TenantHandle, error) {
	ok, err := r.grants.Has(ctx, principal, id)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("grant check for %s on %s: %w", principal.ID, id, err)
	}
	if !ok {
		metrics.ResolutionsTotal.WithLabelValues("denied").Inc()
		r.rec.MustRecord(principal.ID, model.AuditResolveDenied, &id, nil)
		r.logger.Warn().Str("principal", principal.ID).Str("tenant", id.String()).Msg("resolution denied")
		return nil, fmt.Errorf("principal %s has no grant for tenant %s: %w", principal.ID, id, ErrAccessDenied)
	}

	p, err := r.cache.GetOrCreate(ctx, id)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ResolutionsTotal.WithLabelValues("allowed").Inc()
	if r.sampleRate > 0 && rand.Float64() < r.sampleRate {
		r.rec.Record(principal.ID, model.AuditResolveAllowed, &id, nil)
	}

	return newTenantHandle(p), nil
}
