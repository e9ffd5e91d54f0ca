package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/registry"
)

// auditSink collects audit inserts for assertions.
type auditSink struct {
	mu    sync.Mutex
	calls [][]any
}

func (a *auditSink) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, args)
	return pgconn.CommandTag{}, nil
}

func (a *auditSink) events() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var evs []string
	for _, c := range a.calls {
		evs = append(evs, c[1].(string))
	}
	return evs
}

func newTestResolver(t *testing.T, grants GrantChecker, sampleRate float64) (*Resolver, *Cache, *fakeDescriptors, *auditSink) {
	t.Helper()
	descs := newFakeDescriptors()
	cache := newTestCache(descs, newFakeOpener(), CacheConfig{})
	sink := &auditSink{}
	rec := audit.NewRecorder(sink, zerolog.Nop())
	t.Cleanup(rec.Close)
	return NewResolver(zerolog.Nop(), cache, grants, rec, sampleRate), cache, descs, sink
}

func TestResolve_GrantedReturnsBoundHandle(t *testing.T) {
	grants := newFakeGrants()
	grants.allow("svc-billing", "acme")
	resolver, _, descs, _ := newTestResolver(t, grants, 0)
	descs.add("acme")

	handle, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-billing"}, "acme")
	require.NoError(t, err)
	assert.Equal(t, model.TenantID("acme"), handle.TenantID())
}

func TestResolve_DeniedIsAlwaysAudited(t *testing.T) {
	grants := newFakeGrants()
	resolver, _, descs, sink := newTestResolver(t, grants, 0)
	descs.add("acme")

	_, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-billing"}, "acme")
	require.ErrorIs(t, err, ErrAccessDenied)

	// Even with sampling disabled, the denial is recorded.
	require.Eventually(t, func() bool {
		for _, e := range sink.events() {
			if e == model.AuditResolveDenied {
				return true
			}
		}
		return false
	}, eventuallyTimeout, eventuallyTick)
}

func TestResolve_DeniedDoesNotTouchCache(t *testing.T) {
	grants := newFakeGrants()
	resolver, cache, descs, _ := newTestResolver(t, grants, 0)
	descs.add("acme")

	_, err := resolver.Resolve(context.Background(), model.Principal{ID: "intruder"}, "acme")
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Empty(t, cache.cachedIDs(), "no pool warmed for a denied caller")
}

func TestResolve_AllTenantsScope(t *testing.T) {
	grants := newFakeGrants()
	resolver, _, descs, _ := newTestResolver(t, grants, 0)
	descs.add("acme")

	principal := model.Principal{ID: "operator", Scopes: []string{model.ScopeAllTenants}}
	// fakeGrants has no entry; the real GrantService honors the scope,
	// so emulate it here.
	grants.allow("operator", "acme")

	handle, err := resolver.Resolve(context.Background(), principal, "acme")
	require.NoError(t, err)
	assert.Equal(t, model.TenantID("acme"), handle.TenantID())
}

func TestResolve_PropagatesTenantStateErrors(t *testing.T) {
	grants := newFakeGrants()
	grants.allow("svc-billing", "acme")
	resolver, _, descs, _ := newTestResolver(t, grants, 0)
	descs.fail("acme", registry.ErrTenantSuspended)

	_, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-billing"}, "acme")
	require.ErrorIs(t, err, registry.ErrTenantSuspended)
}

func TestResolve_GrantCheckError(t *testing.T) {
	grants := newFakeGrants()
	grants.err = errors.New("control plane unreachable")
	resolver, _, descs, _ := newTestResolver(t, grants, 0)
	descs.add("acme")

	_, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-billing"}, "acme")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestResolve_SampledAuditAtFullRate(t *testing.T) {
	grants := newFakeGrants()
	grants.allow("svc-billing", "acme")
	resolver, _, descs, sink := newTestResolver(t, grants, 1.0)
	descs.add("acme")

	_, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-billing"}, "acme")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, e := range sink.events() {
			if e == model.AuditResolveAllowed {
				return true
			}
		}
		return false
	}, eventuallyTimeout, eventuallyTick)
}

func TestResolve_HandlesShareOnePool(t *testing.T) {
	grants := newFakeGrants()
	grants.allow("svc-a", "acme")
	grants.allow("svc-b", "acme")
	resolver, _, descs, _ := newTestResolver(t, grants, 0)
	descs.add("acme")

	h1, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-a"}, "acme")
	require.NoError(t, err)
	h2, err := resolver.Resolve(context.Background(), model.Principal{ID: "svc-b"}, "acme")
	require.NoError(t, err)

	assert.Same(t, h1.pool, h2.pool)
}
