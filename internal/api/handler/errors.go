package handler

import (
	"errors"
	"net/http"

	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/provision"
	"github.com/arvid/tenantdb/internal/registry"
	"github.com/arvid/tenantdb/internal/router"
)

// writeDomainError maps the error taxonomy onto HTTP status codes.
// Anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrTenantUnknown):
		status = http.StatusNotFound
	case errors.Is(err, router.ErrAccessDenied),
		errors.Is(err, registry.ErrTenantSuspended):
		status = http.StatusForbidden
	case errors.Is(err, registry.ErrTenantNotProvisioned),
		errors.Is(err, registry.ErrTenantDeprovisioned),
		errors.Is(err, registry.ErrDescriptorLocked),
		errors.Is(err, provision.ErrNotReprovisionable):
		status = http.StatusConflict
	case errors.Is(err, router.ErrTenantConnectionFailed),
		errors.Is(err, router.ErrPoolExhausted):
		status = http.StatusServiceUnavailable
	}
	response.WriteError(w, status, err.Error())
}
