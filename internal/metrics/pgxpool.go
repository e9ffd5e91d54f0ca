package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterControlPlanePoolMetrics exposes the control-plane pgx pool
// statistics as Prometheus gauges.
func RegisterControlPlanePoolMetrics(pool *pgxpool.Pool) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "controlplane_pool_acquired_conns",
			Help: "Number of currently acquired connections in the control-plane pool",
		}, func() float64 {
			return float64(pool.Stat().AcquiredConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "controlplane_pool_max_conns",
			Help: "Maximum number of connections in the control-plane pool",
		}, func() float64 {
			return float64(pool.Stat().MaxConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "controlplane_pool_total_conns",
			Help: "Total number of connections in the control-plane pool",
		}, func() float64 {
			return float64(pool.Stat().TotalConns())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "controlplane_pool_idle_conns",
			Help: "Number of idle connections in the control-plane pool",
		}, func() float64 {
			return float64(pool.Stat().IdleConns())
		}),
	)
}
