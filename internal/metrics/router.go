package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts tenant resolutions by outcome
	// (allowed, denied, error).
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdb_resolutions_total",
			Help: "Total number of tenant resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// PoolCreationsTotal counts pool creation attempts by result.
	PoolCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdb_pool_creations_total",
			Help: "Total number of tenant pool creation attempts by result",
		},
		[]string{"result"},
	)

	// PoolEvictionsTotal counts pool evictions by reason
	// (explicit, idle, status, shutdown).
	PoolEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenantdb_pool_evictions_total",
			Help: "Total number of tenant pool evictions by reason",
		},
		[]string{"reason"},
	)

	// PoolsCached tracks the number of currently cached tenant pools.
	PoolsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenantdb_pools_cached",
			Help: "Number of tenant pools currently cached in this process",
		},
	)

	// BreakerOpen tracks open circuit breakers per tenant.
	BreakerOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tenantdb_breaker_open",
			Help: "Whether the circuit breaker for a tenant is open (1) or not (0)",
		},
		[]string{"tenant"},
	)
)
