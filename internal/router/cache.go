package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/arvid/tenantdb/internal/metrics"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/registry"
)

// DescriptorSource is the registry surface the cache reads descriptors
// through.
type DescriptorSource interface {
	Get(ctx context.Context, actor string, id model.TenantID) (model.ConnectionDescriptor, error)
}

// CacheConfig tunes the pool cache. Zero values fall back to the
// documented defaults.
type CacheConfig struct {
	BreakerThreshold int           // consecutive failures before the breaker opens (default 3)
	BreakerCooldown  time.Duration // open-state cooldown before a probe (default 30s)
	IdleWindow       time.Duration // idle time before a pool is swept (default 15m)
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = 3
	}
	if c.BreakerCooldown == 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.IdleWindow == 0 {
		c.IdleWindow = 15 * time.Minute
	}
	return c
}

// cacheActor is the audit actor identity for descriptor reads performed
// by the cache itself.
const cacheActor = "pool-cache"

// Cache memoizes one connection pool per tenant for the lifetime of the
// process. Creation is single-flight per tenant: concurrent callers for
// the same cold tenant share one creation attempt, callers for distinct
// tenants never contend.
type Cache struct {
	logger      zerolog.Logger
	descriptors DescriptorSource
	opener      Opener
	cfg         CacheConfig

	mu       sync.RWMutex
	pools    map[model.TenantID]*Pool
	breakers map[model.TenantID]*breaker

	group singleflight.Group
}

func NewCache(logger zerolog.Logger, descriptors DescriptorSource, opener Opener, cfg CacheConfig) *Cache {
	return &Cache{
		logger:      logger.With().Str("component", "pool-cache").Logger(),
		descriptors: descriptors,
		opener:      opener,
		cfg:         cfg.withDefaults(),
		pools:       make(map[model.TenantID]*Pool),
		breakers:    make(map[model.TenantID]*breaker),
	}
}

// GetOrCreate returns the tenant's cached pool, creating it on first
// use. The warm path is a map read under an RLock and never blocks on
// I/O. The cold path blocks while exactly one creation attempt runs;
// the attempt is shared, so a caller's own cancellation does not abort
// it for the other waiters.
func (c *Cache) GetOrCreate(ctx context.Context, id model.TenantID) (*Pool, error) {
	c.mu.RLock()
	p := c.pools[id]
	c.mu.RUnlock()
	if p != nil {
		p.touch()
		return p, nil
	}

	v, err, _ := c.group.Do(string(id), func() (any, error) {
		// A racing creator may have won before we entered the group.
		c.mu.RLock()
		existing := c.pools[id]
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		return c.create(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	pool := v.(*Pool)
	pool.touch()
	return pool, nil
}

// create runs one pool creation attempt. It is called with the
// single-flight lock for this tenant held; the cache map lock is only
// taken for the final insert, never across I/O.
func (c *Cache) create(ctx context.Context, id model.TenantID) (*Pool, error) {
	br := c.breaker(id)
	if !br.allow() {
		metrics.PoolCreationsTotal.WithLabelValues("short_circuited").Inc()
		return nil, fmt.Errorf("tenant %s: circuit open after %d consecutive failures: %w",
			id, br.consecutiveFailures(), ErrTenantConnectionFailed)
	}

	// The creation attempt is shared by all waiters, so it must not die
	// with whichever caller happened to trigger it.
	createCtx := context.WithoutCancel(ctx)

	d, err := c.descriptors.Get(createCtx, cacheActor, id)
	if err != nil {
		// Tenant-state errors are not connection failures; they count
		// neither for nor against the breaker, and a half-open probe
		// stopped here must be released or no probe ever runs again.
		if isTenantStateErr(err) {
			br.cancelProbe()
			metrics.PoolCreationsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		br.failure()
		c.setBreakerGauge(id, br)
		metrics.PoolCreationsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("descriptor lookup for %s: %v: %w", id, err, ErrTenantConnectionFailed)
	}

	conn, err := c.opener.Open(createCtx, d)
	if err != nil {
		br.failure()
		c.setBreakerGauge(id, br)
		metrics.PoolCreationsTotal.WithLabelValues("failure").Inc()
		c.logger.Warn().Err(err).Str("tenant", id.String()).Msg("pool creation failed")
		return nil, fmt.Errorf("open pool for %s: %v: %w", id, err, ErrTenantConnectionFailed)
	}

	br.success()
	c.setBreakerGauge(id, br)

	p := newPool(id, conn)
	c.mu.Lock()
	c.pools[id] = p
	poolCount := len(c.pools)
	c.mu.Unlock()

	metrics.PoolCreationsTotal.WithLabelValues("success").Inc()
	metrics.PoolsCached.Set(float64(poolCount))
	c.logger.Info().Str("tenant", id.String()).Str("host", d.Host).Msg("tenant pool created")
	return p, nil
}

func isTenantStateErr(err error) bool {
	return errors.Is(err, registry.ErrTenantUnknown) ||
		errors.Is(err, registry.ErrTenantNotProvisioned) ||
		errors.Is(err, registry.ErrTenantSuspended) ||
		errors.Is(err, registry.ErrTenantDeprovisioned)
}

// Evict removes the tenant's pool and closes it. The close blocks until
// every acquired connection has been released, so the old pool is fully
// drained when Evict returns. A subsequent GetOrCreate starts cold.
func (c *Cache) Evict(id model.TenantID) {
	c.evict(id, "explicit")
}

func (c *Cache) evict(id model.TenantID, reason string) {
	c.mu.Lock()
	p := c.pools[id]
	delete(c.pools, id)
	poolCount := len(c.pools)
	c.mu.Unlock()

	if p == nil {
		return
	}
	p.close()
	metrics.PoolEvictionsTotal.WithLabelValues(reason).Inc()
	metrics.PoolsCached.Set(float64(poolCount))
	c.logger.Info().Str("tenant", id.String()).Str("reason", reason).Msg("tenant pool evicted")
}

// EvictAll drains every cached pool. Used at process shutdown.
func (c *Cache) EvictAll() {
	c.mu.Lock()
	pools := c.pools
	c.pools = make(map[model.TenantID]*Pool)
	c.mu.Unlock()

	for id, p := range pools {
		p.close()
		metrics.PoolEvictionsTotal.WithLabelValues("shutdown").Inc()
		c.logger.Debug().Str("tenant", id.String()).Msg("tenant pool closed at shutdown")
	}
	metrics.PoolsCached.Set(0)
}

// breaker returns the tenant's breaker, creating it on first use.
func (c *Cache) breaker(id model.TenantID) *breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	br := c.breakers[id]
	if br == nil {
		br = newBreaker(c.cfg.BreakerThreshold, c.cfg.BreakerCooldown)
		c.breakers[id] = br
	}
	return br
}

func (c *Cache) setBreakerGauge(id model.TenantID, br *breaker) {
	if br.state() == breakerOpen {
		metrics.BreakerOpen.WithLabelValues(id.String()).Set(1)
	} else {
		metrics.BreakerOpen.WithLabelValues(id.String()).Set(0)
	}
}

// cachedIDs returns the tenants that currently have a cached pool.
func (c *Cache) cachedIDs() []model.TenantID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]model.TenantID, 0, len(c.pools))
	for id := range c.pools {
		ids = append(ids, id)
	}
	return ids
}

// HealthSnapshot reports per-tenant pool health for the introspection
// endpoint. No connection secrets are included.
func (c *Cache) HealthSnapshot() []model.PoolHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.PoolHealth, 0, len(c.pools)+len(c.breakers))
	seen := make(map[model.TenantID]bool, len(c.pools))

	for id, p := range c.pools {
		seen[id] = true
		h := model.PoolHealth{
			TenantID:      id,
			Health:        p.health(),
			MaxConns:      p.conn.MaxConns(),
			AcquiredConns: p.conn.AcquiredConns(),
			TotalConns:    p.conn.TotalConns(),
			LastUsedAt:    p.lastUsedAt(),
		}
		if br := c.breakers[id]; br != nil {
			h.ConsecutiveErrs = br.consecutiveFailures()
		}
		out = append(out, h)
	}

	// Tenants with an open breaker and no pool are unavailable.
	for id, br := range c.breakers {
		if seen[id] || br.state() == breakerClosed {
			continue
		}
		out = append(out, model.PoolHealth{
			TenantID:        id,
			Health:          model.HealthUnavailable,
			ConsecutiveErrs: br.consecutiveFailures(),
		})
	}
	return out
}
