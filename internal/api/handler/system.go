package handler

import (
	"context"
	"net/http"

	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
)

// TenantCounter provides tenant counts for the system info endpoint.
type TenantCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// System reports per-instance operational state: tenant counts by
// status and a summary of this instance's pool cache.
type System struct {
	service  string
	instance string
	tenants  TenantCounter
	cache    PoolIntrospector
}

func NewSystem(service, instance string, tenants TenantCounter, cache PoolIntrospector) *System {
	return &System{service: service, instance: instance, tenants: tenants, cache: cache}
}

type systemInfo struct {
	Service        string         `json:"service"`
	Instance       string         `json:"instance"`
	TenantsByState map[string]int `json:"tenants_by_status"`
	PoolsCached    int            `json:"pools_cached"`
	PoolsByHealth  map[string]int `json:"pools_by_health"`
}

func (h *System) Info(w http.ResponseWriter, r *http.Request) {
	counts, err := h.tenants.CountByStatus(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	snapshot := h.cache.HealthSnapshot()
	byHealth := make(map[string]int)
	cached := 0
	for _, p := range snapshot {
		byHealth[p.Health]++
		if p.Health != model.HealthUnavailable {
			cached++
		}
	}

	response.WriteJSON(w, http.StatusOK, systemInfo{
		Service:        h.service,
		Instance:       h.instance,
		TenantsByState: counts,
		PoolsCached:    cached,
		PoolsByHealth:  byHealth,
	})
}
