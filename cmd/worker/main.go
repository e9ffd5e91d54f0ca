package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/arvid/tenantdb/internal/activity"
	"github.com/arvid/tenantdb/internal/audit"
	"github.com/arvid/tenantdb/internal/config"
	"github.com/arvid/tenantdb/internal/db"
	"github.com/arvid/tenantdb/internal/logging"
	"github.com/arvid/tenantdb/internal/metrics"
	"github.com/arvid/tenantdb/internal/provision"
	"github.com/arvid/tenantdb/internal/registry"
	"github.com/arvid/tenantdb/internal/secrets"
	"github.com/arvid/tenantdb/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewControlPlanePool(ctx, cfg.ControlPlaneDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to control-plane database")
	}
	defer pool.Close()

	adminPool, err := db.NewTenantAdminPool(ctx, cfg.TenantServerAdminURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to tenant server admin database")
	}
	defer adminPool.Close()

	secretStore, err := secrets.NewDBStore(pool, cfg.SecretboxKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize secret store")
	}

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, workflow.TaskQueue, worker.Options{})

	recorder := audit.NewRecorder(pool, logger)
	defer recorder.Close()

	// Register activities
	tenants := registry.NewTenantService(pool)
	descriptors := registry.NewDescriptorService(pool, recorder)
	alloc := provision.NewAdminAllocator(logger, adminPool, secretStore, cfg.TenantServerHost, cfg.TenantServerPort)
	mig := provision.NewBaselineMigrator(logger, secretStore, cfg.TenantMigrationsDir)

	provisionActivities := activity.NewProvision(tenants, descriptors, alloc, mig)
	w.RegisterActivity(provisionActivities)

	if cfg.AuditArchiveBucket != "" {
		archiveActivities := activity.NewArchive(logger, pool,
			cfg.AuditArchiveEndpoint, cfg.AuditArchiveKey, cfg.AuditArchiveSecret, cfg.AuditArchiveBucket)
		w.RegisterActivity(archiveActivities)
	}

	// Register workflows
	w.RegisterWorkflow(workflow.ProvisionTenantWorkflow)
	w.RegisterWorkflow(workflow.ReprovisionTenantWorkflow)
	w.RegisterWorkflow(workflow.DeprovisionTenantWorkflow)
	w.RegisterWorkflow(workflow.FleetMigrationWorkflow)
	w.RegisterWorkflow(workflow.AuditArchiveWorkflow)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr, pool.Ping)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", workflow.TaskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	// Cron schedules. Errors for already-existing schedules are ignored
	// so that re-deploys do not fail.
	if cfg.AuditArchiveBucket != "" {
		registerCronSchedules(ctx, tc, cfg, logger)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

type cronSchedule struct {
	id       string
	cron     string
	workflow interface{}
	args     []interface{}
}

func registerCronSchedules(ctx context.Context, tc temporalclient.Client, cfg *config.Config, logger zerolog.Logger) {
	schedules := []cronSchedule{
		{
			id:       "audit-archive-cron",
			cron:     "0 4 * * *",
			workflow: workflow.AuditArchiveWorkflow,
			args:     []interface{}{workflow.AuditArchiveParams{Retention: cfg.AuditRetention}},
		},
	}

	scheduleClient := tc.ScheduleClient()

	for _, s := range schedules {
		_, err := scheduleClient.Create(ctx, temporalclient.ScheduleOptions{
			ID: s.id,
			Spec: temporalclient.ScheduleSpec{
				CronExpressions: []string{s.cron},
			},
			Action: &temporalclient.ScheduleWorkflowAction{
				ID:        s.id,
				Workflow:  s.workflow,
				Args:      s.args,
				TaskQueue: workflow.TaskQueue,
			},
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") {
				logger.Info().Str("id", s.id).Msg("cron schedule already exists, skipping")
			} else {
				logger.Fatal().Err(err).Str("id", s.id).Msg("failed to create cron schedule")
			}
		} else {
			logger.Info().Str("id", s.id).Str("cron", s.cron).Msg("created cron schedule")
		}
	}
}
