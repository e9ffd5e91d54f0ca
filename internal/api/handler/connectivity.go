package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arvid/tenantdb/internal/api/middleware"
	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
)

// TenantConn is the tenant-bound handle the connectivity check runs
// its round trip against.
type TenantConn interface {
	TenantID() model.TenantID
	Ping(ctx context.Context) error
}

// TenantResolver is the data-plane entry point: grant check, then pool
// cache, then a handle bound to exactly one tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, principal model.Principal, id model.TenantID) (TenantConn, error)
}

// Connectivity exercises a tenant's database path end to end: the
// caller's grant, the descriptor, the cached pool, and one round trip.
// Denied callers take the same path as any other denied resolution.
type Connectivity struct {
	resolver TenantResolver
}

func NewConnectivity(resolver TenantResolver) *Connectivity {
	return &Connectivity{resolver: resolver}
}

type connectivityResponse struct {
	TenantID  model.TenantID `json:"tenant_id"`
	Status    string         `json:"status"`
	RoundTrip string         `json:"round_trip"`
}

func (h *Connectivity) Check(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	principal := middleware.Principal(r.Context())
	conn, err := h.resolver.Resolve(r.Context(), principal, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	start := time.Now()
	if err := conn.Ping(r.Context()); err != nil {
		response.WriteError(w, http.StatusServiceUnavailable, "tenant database unreachable: "+err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, connectivityResponse{
		TenantID:  conn.TenantID(),
		Status:    "ok",
		RoundTrip: time.Since(start).String(),
	})
}
