// Package secrets resolves credential secret references stored in
// tenant connection descriptors. Descriptors carry only a lookup key;
// the actual secret lives here.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when a secret reference has no stored value.
var ErrNotFound = errors.New("secret not found")

// Store is the external secret-store collaborator used by the pool
// cache and the provisioner.
type Store interface {
	Get(ctx context.Context, ref string) (string, error)
	Put(ctx context.Context, ref, value string) error
}

// EnvStore resolves secret references from environment variables.
// A ref "db-password-acme" maps to TENANTDB_SECRET_DB_PASSWORD_ACME.
// Writes are rejected; it exists for development and tests.
type EnvStore struct{}

func (EnvStore) Get(_ context.Context, ref string) (string, error) {
	key := "TENANTDB_SECRET_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(ref))
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("env secret %s: %w", key, ErrNotFound)
	}
	return v, nil
}

func (EnvStore) Put(_ context.Context, ref, _ string) error {
	return fmt.Errorf("env secret store is read-only, cannot store %q", ref)
}
