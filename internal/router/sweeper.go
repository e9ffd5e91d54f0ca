package router

import (
	"context"
	"time"

	"github.com/arvid/tenantdb/internal/model"
)

// StatusSource resolves current lifecycle statuses for cached tenants,
// so the sweeper catches suspensions made by other processes.
type StatusSource interface {
	StatusesByID(ctx context.Context, ids []model.TenantID) (map[model.TenantID]string, error)
}

// RunSweeper periodically reclaims pools that are idle past the idle
// window and evicts pools whose tenant is no longer active. It returns
// when ctx is cancelled.
func (c *Cache) RunSweeper(ctx context.Context, statuses StatusSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx, statuses)
		}
	}
}

// Sweep runs one eviction cycle. Pools with connections in flight are
// never reclaimed; they are revisited on the next cycle.
func (c *Cache) Sweep(ctx context.Context, statuses StatusSource) {
	ids := c.cachedIDs()
	if len(ids) == 0 {
		return
	}

	current, err := statuses.StatusesByID(ctx, ids)
	if err != nil {
		// Status lookup failing must not stop idle eviction.
		c.logger.Warn().Err(err).Msg("sweep status lookup failed")
		current = nil
	}

	now := time.Now()
	for _, id := range ids {
		c.mu.RLock()
		p := c.pools[id]
		c.mu.RUnlock()
		if p == nil {
			continue
		}

		if current != nil {
			if status, ok := current[id]; !ok || status != model.StatusActive {
				c.evict(id, "status")
				continue
			}
		}

		if p.idleFor(now) >= c.cfg.IdleWindow && !p.inUse() {
			c.evict(id, "idle")
		}
	}
}
