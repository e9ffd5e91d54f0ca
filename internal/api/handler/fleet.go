package handler

import (
	"net/http"

	"github.com/arvid/tenantdb/internal/api/middleware"
	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/provision"
)

// Fleet triggers operations that span every active tenant.
type Fleet struct {
	lifecycle *provision.LifecycleService
}

func NewFleet(lifecycle *provision.LifecycleService) *Fleet {
	return &Fleet{lifecycle: lifecycle}
}

// Migrate runs pending schema migrations across the whole tenant fleet
// and reports the per-tenant outcome. The call blocks until the run
// finished.
func (h *Fleet) Migrate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.Principal(r.Context()).ID
	result, err := h.lifecycle.MigrateFleet(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}
