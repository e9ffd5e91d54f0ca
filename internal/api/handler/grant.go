package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arvid/tenantdb/internal/api/middleware"
	"github.com/arvid/tenantdb/internal/api/request"
	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/registry"
)

type Grant struct {
	grants *registry.GrantService
}

func NewGrant(grants *registry.GrantService) *Grant {
	return &Grant{grants: grants}
}

func (h *Grant) ListByTenant(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	grants, err := h.grants.ListByTenant(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, grants)
}

func (h *Grant) Create(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateGrant
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := middleware.Principal(r.Context()).ID
	grant, err := h.grants.Create(r.Context(), actor, req.PrincipalID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, grant)
}

func (h *Grant) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := model.ParseTenantID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	principalID := chi.URLParam(r, "principalID")

	actor := middleware.Principal(r.Context()).ID
	if err := h.grants.Revoke(r.Context(), actor, principalID, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
