package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// ControlPlaneDatabaseURL points at the control-plane database that
	// holds the tenant registry, grants, and audit log. It is the only
	// database reachable without tenant resolution.
	ControlPlaneDatabaseURL string
	// TenantServerAdminURL is an admin connection to the database server
	// on which new tenant databases are allocated.
	TenantServerAdminURL string
	// TenantServerHost and TenantServerPort are what descriptors for
	// newly allocated databases point at. They may differ from the
	// admin URL when clients connect through a proxy.
	TenantServerHost string
	TenantServerPort int
	// TenantMigrationsDir holds the baseline schema applied to every
	// new tenant database.
	TenantMigrationsDir string
	// TemporalAddress is the Temporal frontend. The value "disabled"
	// runs provisioning in-process instead of through workflows.
	TemporalAddress   string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string
	ServiceName       string
	InstanceID        string

	// SecretboxKey is the base64 32-byte key for credential encryption
	// at rest. Required for router-api and worker.
	SecretboxKey string

	// Pool cache tuning.
	PoolMaxConns       int32         // per-tenant pool size cap, default 10
	PoolConnectTimeout time.Duration // bounded connect timeout, default 5s
	PoolIdleWindow     time.Duration // idle eviction window, default 15m
	PoolSweepInterval  time.Duration // sweeper cadence, default 1m

	// Circuit breaker tuning.
	BreakerThreshold int           // consecutive failures before opening, default 3
	BreakerCooldown  time.Duration // open-state cooldown, default 30s

	// AuditSampleRate is the fraction of allowed resolutions that are
	// written to the audit trail. Denied resolutions are always audited.
	AuditSampleRate float64 // default 0.01

	// Audit archive (worker cron).
	AuditArchiveBucket   string
	AuditArchiveEndpoint string
	AuditArchiveKey      string
	AuditArchiveSecret   string
	AuditRetention       time.Duration // default 720h
}

func Load() (*Config, error) {
	cfg := &Config{
		ControlPlaneDatabaseURL: getEnv("CONTROL_PLANE_DATABASE_URL", ""),
		TenantServerAdminURL:    getEnv("TENANT_SERVER_ADMIN_URL", ""),
		TenantServerHost:        getEnv("TENANT_SERVER_HOST", "localhost"),
		TenantServerPort:        getEnvInt("TENANT_SERVER_PORT", 5432),
		TenantMigrationsDir:     getEnv("TENANT_MIGRATIONS_DIR", "migrations/tenant"),
		TemporalAddress:         getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:          getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:       getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		ServiceName:             getEnv("SERVICE_NAME", "tenantdb"),
		InstanceID:              getEnv("INSTANCE_ID", ""),
		SecretboxKey:            getEnv("SECRETBOX_KEY", ""),
		PoolMaxConns:            int32(getEnvInt("POOL_MAX_CONNS", 10)),
		PoolConnectTimeout:      getEnvDuration("POOL_CONNECT_TIMEOUT", 5*time.Second),
		PoolIdleWindow:          getEnvDuration("POOL_IDLE_WINDOW", 15*time.Minute),
		PoolSweepInterval:       getEnvDuration("POOL_SWEEP_INTERVAL", time.Minute),
		BreakerThreshold:        getEnvInt("BREAKER_THRESHOLD", 3),
		BreakerCooldown:         getEnvDuration("BREAKER_COOLDOWN", 30*time.Second),
		AuditSampleRate:         getEnvFloat("AUDIT_SAMPLE_RATE", 0.01),
		AuditArchiveBucket:      getEnv("AUDIT_ARCHIVE_BUCKET", ""),
		AuditArchiveEndpoint:    getEnv("AUDIT_ARCHIVE_ENDPOINT", ""),
		AuditArchiveKey:         getEnv("AUDIT_ARCHIVE_ACCESS_KEY", ""),
		AuditArchiveSecret:      getEnv("AUDIT_ARCHIVE_SECRET_KEY", ""),
		AuditRetention:          getEnvDuration("AUDIT_RETENTION", 720*time.Hour),
	}

	return cfg, nil
}

// TemporalEnabled reports whether lifecycle operations go through
// Temporal workflows rather than running in-process.
func (c *Config) TemporalEnabled() bool {
	return c.TemporalAddress != "" && c.TemporalAddress != "disabled"
}

// Validate checks that the fields required by the given service are set.
func (c *Config) Validate(service string) error {
	switch service {
	case "router-api", "worker":
		if c.ControlPlaneDatabaseURL == "" {
			return fmt.Errorf("%s: CONTROL_PLANE_DATABASE_URL is required", service)
		}
		if c.SecretboxKey == "" {
			return fmt.Errorf("%s: SECRETBOX_KEY is required", service)
		}
		if service == "worker" && c.TenantServerAdminURL == "" {
			return fmt.Errorf("worker: TENANT_SERVER_ADMIN_URL is required")
		}
	}
	if c.PoolMaxConns < 1 {
		return fmt.Errorf("POOL_MAX_CONNS must be at least 1")
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("BREAKER_THRESHOLD must be at least 1")
	}
	if c.AuditSampleRate < 0 || c.AuditSampleRate > 1 {
		return fmt.Errorf("AUDIT_SAMPLE_RATE must be between 0 and 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
