// Package api wires the admin HTTP surface of the router: tenant
// lifecycle, grants, pool introspection, the audit trail, and a
// grant-checked per-tenant connectivity probe that goes through the
// same resolution path application services use.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/api/handler"
	mw "github.com/arvid/tenantdb/internal/api/middleware"
	"github.com/arvid/tenantdb/internal/config"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/provision"
	"github.com/arvid/tenantdb/internal/registry"
	"github.com/arvid/tenantdb/internal/router"
)

type Server struct {
	router    chi.Router
	logger    zerolog.Logger
	cfg       *config.Config
	pool      *pgxpool.Pool
	tenants   *registry.TenantService
	grants    *registry.GrantService
	lifecycle *provision.LifecycleService
	cache     *router.Cache
	resolver  *router.Resolver
}

func NewServer(logger zerolog.Logger, cfg *config.Config, pool *pgxpool.Pool, tenants *registry.TenantService, grants *registry.GrantService, lifecycle *provision.LifecycleService, cache *router.Cache, resolver *router.Resolver) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger,
		cfg:       cfg,
		pool:      pool,
		tenants:   tenants,
		grants:    grants,
		lifecycle: lifecycle,
		cache:     cache,
		resolver:  resolver,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(chimw.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))

		tenant := handler.NewTenant(s.tenants, s.lifecycle)
		r.Get("/tenants", tenant.List)
		r.Post("/tenants", tenant.Provision)
		r.Get("/tenants/{id}", tenant.Get)
		r.Put("/tenants/{id}", tenant.Update)
		r.Delete("/tenants/{id}", tenant.Deprovision)
		r.Post("/tenants/{id}/reprovision", tenant.Reprovision)
		r.Post("/tenants/{id}/suspend", tenant.Suspend)
		r.Post("/tenants/{id}/resume", tenant.Resume)

		conn := handler.NewConnectivity(resolverAdapter{s.resolver})
		r.Get("/tenants/{id}/connectivity", conn.Check)

		grant := handler.NewGrant(s.grants)
		r.Get("/tenants/{id}/grants", grant.ListByTenant)
		r.Post("/tenants/{id}/grants", grant.Create)
		r.Delete("/tenants/{id}/grants/{principalID}", grant.Revoke)

		pools := handler.NewPool(s.cache)
		r.Get("/pools", pools.List)
		r.Delete("/pools/{id}", pools.Evict)

		audit := handler.NewAudit(s.pool)
		r.Get("/audit-logs", audit.List)

		system := handler.NewSystem(s.cfg.ServiceName, s.cfg.InstanceID, s.tenants, s.cache)
		r.Get("/system/info", system.Info)

		fleet := handler.NewFleet(s.lifecycle)
		r.Post("/system/fleet-migration", fleet.Migrate)
	})
}

// resolverAdapter narrows *router.TenantHandle to the handler's
// TenantConn interface.
type resolverAdapter struct {
	resolver *router.Resolver
}

func (a resolverAdapter) Resolve(ctx context.Context, principal model.Principal, id model.TenantID) (handler.TenantConn, error) {
	h, err := a.resolver.Resolve(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleReadyz reports ready only when the control plane is reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		http.Error(w, "control plane unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
