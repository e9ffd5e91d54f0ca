package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	temporalclient "go.temporal.io/sdk/client"

	"github.com/arvid/tenantdb/internal/api"
	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/config"
	"github.com/arvid/tenantdb/internal/db"
	"github.com/arvid/tenantdb/internal/logging"
	"github.com/arvid/tenantdb/internal/metrics"
	"github.com/arvid/tenantdb/internal/provision"
	"github.com/arvid/tenantdb/internal/registry"
	"github.com/arvid/tenantdb/internal/router"
	"github.com/arvid/tenantdb/internal/secrets"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-admin-key" {
		createAdminKey(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run control-plane migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations/controlplane", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("router-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running control-plane migrations")
		if err := db.RunMigrations(cfg.ControlPlaneDatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewControlPlanePool(ctx, cfg.ControlPlaneDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to control-plane database")
	}
	defer pool.Close()
	metrics.RegisterControlPlanePoolMetrics(pool)

	secretStore, err := secrets.NewDBStore(pool, cfg.SecretboxKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize secret store")
	}

	recorder := audit.NewRecorder(pool, logger)
	defer recorder.Close()

	tenants := registry.NewTenantService(pool)
	descriptors := registry.NewDescriptorService(pool, recorder)
	grants := registry.NewGrantService(pool, recorder)

	opener := &router.PgxOpener{
		Secrets:        secretStore,
		MaxConns:       cfg.PoolMaxConns,
		ConnectTimeout: cfg.PoolConnectTimeout,
	}
	cache := router.NewCache(logger, descriptors, opener, router.CacheConfig{
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		IdleWindow:       cfg.PoolIdleWindow,
	})
	defer cache.EvictAll()
	go cache.RunSweeper(ctx, tenants, cfg.PoolSweepInterval)

	resolver := router.NewResolver(logger, cache, grants, recorder, cfg.AuditSampleRate)

	var tc temporalclient.Client
	if cfg.TemporalEnabled() {
		tc, err = temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to temporal")
		}
		defer tc.Close()
	} else {
		logger.Info().Msg("temporal disabled, provisioning runs in-process")
	}

	// The in-process provisioner backs lifecycle operations when no
	// Temporal client is configured.
	var direct *provision.Provisioner
	if tc == nil {
		adminPool, perr := db.NewTenantAdminPool(ctx, cfg.TenantServerAdminURL)
		if perr != nil {
			logger.Fatal().Err(perr).Msg("failed to connect to tenant server admin database")
		}
		defer adminPool.Close()

		alloc := provision.NewAdminAllocator(logger, adminPool, secretStore, cfg.TenantServerHost, cfg.TenantServerPort)
		mig := provision.NewBaselineMigrator(logger, secretStore, cfg.TenantMigrationsDir)
		direct = provision.NewProvisioner(logger, tenants, descriptors, alloc, mig, cache)
	}

	lifecycle := provision.NewLifecycleService(logger, tenants, recorder, tc, direct, cache)

	srv := api.NewServer(logger, cfg, pool, tenants, grants, lifecycle, cache, resolver)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting router API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}

func createAdminKey(args []string) {
	fs := flag.NewFlagSet("create-admin-key", flag.ExitOnError)
	name := fs.String("name", "", "Name for the API key (required)")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "error: --name is required")
		fmt.Fprintln(os.Stderr, "usage: router-api create-admin-key --name <name>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewControlPlanePool(ctx, cfg.ControlPlaneDatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := registry.NewAPIKeyService(pool)
	key, rawKey, err := svc.Create(ctx, *name, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Admin API key created successfully.\n\n")
	fmt.Printf("  Name:   %s\n", key.Name)
	fmt.Printf("  ID:     %s\n", key.ID)
	fmt.Printf("  Key:    %s\n\n", rawKey)
	fmt.Printf("Save this key - it will not be shown again.\n")
}
