package provision

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arvid/tenantdb/internal/db"
	"github.com/arvid/tenantdb/internal/model"
	"github.com/arvid/tenantdb/internal/secrets"
)

// Migrator applies the baseline schema to a freshly allocated tenant
// database.
type Migrator interface {
	Migrate(ctx context.Context, d model.ConnectionDescriptor) error
}

// BaselineMigrator runs the goose migration set in dir against the
// tenant database described by a descriptor. Goose versioning makes the
// run idempotent, so re-provisioning can safely repeat it.
type BaselineMigrator struct {
	logger  zerolog.Logger
	secrets secrets.Store
	dir     string
}

func NewBaselineMigrator(logger zerolog.Logger, store secrets.Store, dir string) *BaselineMigrator {
	return &BaselineMigrator{
		logger:  logger.With().Str("component", "baseline-migrator").Logger(),
		secrets: store,
		dir:     dir,
	}
}

func (m *BaselineMigrator) Migrate(ctx context.Context, d model.ConnectionDescriptor) error {
	password, err := m.secrets.Get(ctx, d.SecretRef)
	if err != nil {
		return fmt.Errorf("resolve credential for tenant %s: %w", d.TenantID, err)
	}

	if err := db.RunMigrations(d.DSN(password), m.dir); err != nil {
		return fmt.Errorf("baseline schema for tenant %s: %w", d.TenantID, err)
	}

	m.logger.Info().Str("tenant", d.TenantID.String()).Str("database", d.DatabaseName).Msg("baseline schema applied")
	return nil
}
