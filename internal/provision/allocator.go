package provision

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/secrets"
)

// identRe matches only characters that are safe inside an unquoted
// Postgres identifier. Names are interpolated into DDL, so anything
// else is rejected outright.
var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// AdminDB is the admin connection to the database server where tenant
// databases are created. *pgxpool.Pool satisfies this interface.
type AdminDB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Allocator carves out an isolated database and credential for a tenant.
type Allocator interface {
	Allocate(ctx context.Context, id model.TenantID) (model.ConnectionDescriptor, error)
}

// AdminAllocator allocates tenant databases with CREATE DATABASE/ROLE
// over an admin connection. The generated credential goes into the
// secret store; descriptors only ever carry the lookup reference.
type AdminAllocator struct {
	logger  zerolog.Logger
	db      AdminDB
	secrets secrets.Store

	// Host and Port the allocated databases are reachable on, as
	// recorded in the descriptor.
	host string
	port int
}

func NewAdminAllocator(logger zerolog.Logger, db AdminDB, store secrets.Store, host string, port int) *AdminAllocator {
	return &AdminAllocator{
		logger:  logger.With().Str("component", "allocator").Logger(),
		db:      db,
		secrets: store,
		host:    host,
		port:    port,
	}
}

// Allocate creates a dedicated database owned by the tenant's role and
// stores the role's password in the secret store. Database and role
// names are both derived from the tenant ID, so allocation is
// restartable: whatever a failed earlier attempt left behind is
// dropped before creating anew, and nothing leaks across attempts.
// Each attempt gets a fresh password.
func (a *AdminAllocator) Allocate(ctx context.Context, id model.TenantID) (model.ConnectionDescriptor, error) {
	dbName := databaseName(id)
	role := roleName(id)
	if !identRe.MatchString(dbName) || !identRe.MatchString(role) {
		return model.ConnectionDescriptor{}, fmt.Errorf("unsafe identifier for tenant %s", id)
	}

	password, err := newPassword()
	if err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("generate credential: %w", err)
	}

	if _, err := a.db.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS %s`, dbName)); err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("drop stale database %s: %w", dbName, err)
	}
	if _, err := a.db.Exec(ctx, fmt.Sprintf(`DROP ROLE IF EXISTS %s`, role)); err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("drop stale role %s: %w", role, err)
	}
	if _, err := a.db.Exec(ctx, fmt.Sprintf(`CREATE ROLE %s LOGIN PASSWORD '%s'`, role, password)); err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("create role for tenant %s: %w", id, err)
	}
	if _, err := a.db.Exec(ctx, fmt.Sprintf(`CREATE DATABASE %s OWNER %s`, dbName, role)); err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("create database for tenant %s: %w", id, err)
	}

	ref := secretRef(id)
	if err := a.secrets.Put(ctx, ref, password); err != nil {
		return model.ConnectionDescriptor{}, fmt.Errorf("store credential for tenant %s: %w", id, err)
	}

	a.logger.Info().Str("tenant", id.String()).Str("database", dbName).Str("role", role).Msg("database allocated")

	now := time.Now()
	return model.ConnectionDescriptor{
		TenantID:      id,
		Host:          a.host,
		Port:          a.port,
		DatabaseName:  dbName,
		Role:          role,
		SecretRef:     ref,
		IsolationMode: model.IsolationDedicatedInstance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// databaseName derives a Postgres-safe database name from the tenant ID.
// Tenant IDs allow hyphens; identifiers do not.
func databaseName(id model.TenantID) string {
	return "tenant_" + strings.ReplaceAll(id.String(), "-", "_")
}

func roleName(id model.TenantID) string {
	return "tdb_" + strings.ReplaceAll(id.String(), "-", "_")
}

func secretRef(id model.TenantID) string {
	return "tenant-db/" + id.String()
}

// newPassword returns a URL-safe random credential. The alphabet
// contains no quoting characters, so it is safe inside the DDL string.
func newPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
