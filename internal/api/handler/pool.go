package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
)

// PoolIntrospector is the slice of the pool cache the introspection
// endpoints use. Snapshots carry no connection secrets.
type PoolIntrospector interface {
	HealthSnapshot() []model.PoolHealth
	Evict(id model.TenantID)
}

// Pool exposes per-instance pool cache introspection. Each router-api
// instance reports only its own cache.
type Pool struct {
	cache PoolIntrospector
}

func NewPool(cache PoolIntrospector) *Pool {
	return &Pool{cache: cache}
}

func (h *Pool) List(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, h.cache.HealthSnapshot())
}

// Evict drops one tenant's cached pool on this instance. The next
// resolution re-reads the descriptor and reconnects.
func (h *Pool) Evict(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.cache.Evict(id)
	w.WriteHeader(http.StatusNoContent)
}
