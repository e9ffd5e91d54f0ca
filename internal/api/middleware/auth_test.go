package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/arvid/tenantdb/internal/model"
)

type fakeAuthDB struct {
	id     string
	scopes []string
	err    error
}

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

func (f *fakeAuthDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return &fakeRow{scanFunc: func(dest ...any) error {
		if f.err != nil {
			return f.err
		}
		*dest[0].(*string) = f.id
		*dest[1].(*[]string) = f.scopes
		return nil
	}}
}

func TestAuth_ValidKeySetsPrincipal(t *testing.T) {
	db := &fakeAuthDB{id: "admin-key-1", scopes: []string{model.ScopeAllTenants}}

	var got model.Principal
	handler := Auth(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Principal(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-key-1", got.ID)
	assert.True(t, got.HasScope(model.ScopeAllTenants))
}

func TestAuth_MissingKey(t *testing.T) {
	handler := Auth(&fakeAuthDB{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_UnknownKey(t *testing.T) {
	db := &fakeAuthDB{err: errors.New("no rows")}
	handler := Auth(db)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrincipal_ZeroWhenUnauthenticated(t *testing.T) {
	p := Principal(context.Background())
	assert.Empty(t, p.ID)
}
