package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/arvid/tenantdb/internal/api/response"
	"github.com/arvid/tenantdb/internal/model"
)

type contextKey string

const principalKey contextKey = "principal"

// AuthDB is the lookup surface the auth middleware needs.
type AuthDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Auth returns a middleware that validates the X-API-Key header against
// the admin_api_keys table. The key's identity becomes the request
// principal, which is also the audit actor for everything the request
// does.
func Auth(db AuthDB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			hash := sha256.Sum256([]byte(key))
			keyHash := hex.EncodeToString(hash[:])

			var principal model.Principal
			err := db.QueryRow(r.Context(),
				`SELECT id, scopes FROM admin_api_keys WHERE key_hash = $1 AND revoked_at IS NULL`, keyHash,
			).Scan(&principal.ID, &principal.Scopes)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Principal returns the authenticated principal stored by Auth. The
// zero Principal is returned for unauthenticated contexts.
func Principal(ctx context.Context) model.Principal {
	p, _ := ctx.Value(principalKey).(model.Principal)
	return p
}
