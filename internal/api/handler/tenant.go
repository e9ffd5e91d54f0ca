package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arvid/tenantdb/internal/api/middleware"
	"github.com/arvid/tenantdb/internal/api/request"
	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/provision"
	"github.com/arvid/tenantdb/internal/registry"
)

// Tenant handles the tenant lifecycle endpoints. Reads go straight to
// the registry; lifecycle changes go through the lifecycle service,
// which waits for the provisioning run to finish before responding.
type Tenant struct {
	registry  *registry.TenantService
	lifecycle *provision.LifecycleService
}

func NewTenant(reg *registry.TenantService, lifecycle *provision.LifecycleService) *Tenant {
	return &Tenant{registry: reg, lifecycle: lifecycle}
}

func (h *Tenant) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)
	status := r.URL.Query().Get("status")

	tenants, hasMore, err := h.registry.List(r.Context(), status, p.Limit, p.Cursor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var nextCursor string
	if hasMore && len(tenants) > 0 {
		nextCursor = tenants[len(tenants)-1].ID.String()
	}
	response.WritePaginated(w, http.StatusOK, tenants, nextCursor, hasMore)
}

func (h *Tenant) Get(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant, err := h.registry.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) Provision(w http.ResponseWriter, r *http.Request) {
	var req request.ProvisionTenant
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := model.ParseTenantID(req.TenantID)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.Principal(r.Context()).ID
	tenant, err := h.lifecycle.Provision(r.Context(), actor, id, req.DisplayName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, tenant)
}

func (h *Tenant) Reprovision(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.Principal(r.Context()).ID
	tenant, err := h.lifecycle.Reprovision(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}

func (h *Tenant) Deprovision(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.Principal(r.Context()).ID
	if err := h.lifecycle.Deprovision(r.Context(), actor, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Tenant) Suspend(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.Principal(r.Context()).ID
	if err := h.lifecycle.Suspend(r.Context(), actor, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Tenant) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.Principal(r.Context()).ID
	if err := h.lifecycle.Resume(r.Context(), actor, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Tenant) Update(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateTenant
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.UpdateDisplayName(r.Context(), id, req.DisplayName); err != nil {
		writeDomainError(w, err)
		return
	}
	tenant, err := h.registry.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, tenant)
}
