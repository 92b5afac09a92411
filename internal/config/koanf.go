// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/outbox"
	"github.com/tomtom215/tabline/internal/payment"
	"github.com/tomtom215/tabline/internal/tasks"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tabline/config.yaml",
	"/etc/tabline/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Role:            RoleCloud,
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			TokenTTL:        12 * time.Hour, // One shift
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			LockoutAttempts: 5,
			LockoutDuration: 15 * time.Minute,
			Casbin: CasbinConfig{
				CacheTTL: 5 * time.Minute,
			},
		},
		Storage: StorageConfig{
			Path:       "/data/tabline",
			SyncWrites: true,
		},
		Ledger: ledger.DefaultConfig(),
		Postgres: PostgresConfig{
			MaxConns: 20,
		},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "tabline:idem:",
		},
		Outbox: OutboxConfig{
			RequestTimeout: 10 * time.Second,
			Engine:         outbox.DefaultConfig(),
			Backoff:        backoff.DefaultConfig(),
		},
		Fanout: FanoutConfig{
			DebounceWindow: 75 * time.Millisecond,
		},
		NATS: NATSConfig{
			URL:        "nats://127.0.0.1:4222",
			Host:       "127.0.0.1",
			Port:       4222,
			MaxPayload: 1 << 20,
		},
		Payment: PaymentConfig{
			Processor: "simulated",
			Timeout:   15 * time.Second,
			Service:   payment.DefaultConfig(),
			Breaker:   payment.DefaultBreakerConfig(),
		},
		Catalog: CatalogConfig{
			CacheTTL: time.Minute,
		},
		Tasks: tasks.DefaultConfig(),
		Audit: audit.DefaultConfig(),
		Scheduler: SchedulerConfig{
			IdempotencyPruneInterval: 10 * time.Minute,
			AuditCleanupInterval:     24 * time.Hour,
			StorageGCInterval:        10 * time.Minute,
		},
		Backup: defaultBackupConfig(),
	}
}

func defaultBackupConfig() backup.Config {
	cfg := backup.DefaultConfig()
	cfg.Dir = "/data/tabline-backups"
	return cfg
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile loads configuration from an explicit YAML path plus the
// environment. Used by tests and the -config flag.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - JWT_SECRET -> security.jwt_secret
//   - OUTBOX_UPSTREAM_URL -> outbox.upstream_url
//   - SAF_FORWARD_INTERVAL -> payment.service.saf_forward_interval
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"server_role":      "server.role",
		"venue_id":         "server.venue_id",
		"http_host":        "server.host",
		"http_port":        "server.port",
		"http_timeout":     "server.timeout",
		"shutdown_timeout": "server.shutdown_timeout",
		"environment":      "server.environment",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Security mappings
		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"token_ttl":           "security.token_ttl",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"lockout_attempts":    "security.lockout_attempts",
		"lockout_duration":    "security.lockout_duration",
		"casbin_model_path":   "security.casbin.model_path",
		"casbin_policy_path":  "security.casbin.policy_path",
		"casbin_cache_ttl":    "security.casbin.cache_ttl",

		// Storage mappings
		"storage_path":        "storage.path",
		"storage_in_memory":   "storage.in_memory",
		"storage_sync_writes": "storage.sync_writes",

		// Ledger mappings
		"ledger_lock_timeout":     "ledger.lock_timeout",
		"ledger_idempotency_ttl":  "ledger.idempotency_ttl",
		"ledger_reopen_interval":  "ledger.reopen_interval",
		"ledger_reopen_burst":     "ledger.reopen_burst",
		"ledger_notify_timeout":   "ledger.notify_timeout",
		"ledger_applied_key_keep": "ledger.applied_key_retention",

		// Postgres mappings
		"postgres_enabled":   "postgres.enabled",
		"postgres_dsn":       "postgres.dsn",
		"database_url":       "postgres.dsn",
		"postgres_max_conns": "postgres.max_conns",

		// Redis mappings
		"redis_enabled":    "redis.enabled",
		"redis_addr":       "redis.addr",
		"redis_password":   "redis.password",
		"redis_db":         "redis.db",
		"redis_key_prefix": "redis.key_prefix",

		// Outbox mappings
		"outbox_enabled":         "outbox.enabled",
		"outbox_upstream_url":    "outbox.upstream_url",
		"outbox_upstream_token":  "outbox.upstream_token",
		"outbox_request_timeout": "outbox.request_timeout",
		"outbox_terminal_id":     "outbox.engine.terminal_id",
		"outbox_poll_interval":   "outbox.engine.poll_interval",
		"outbox_workers":         "outbox.engine.workers",
		"outbox_max_rebases":     "outbox.engine.max_rebases",
		"outbox_dead_letter_ttl": "outbox.engine.dead_letter_ttl",
		"outbox_max_attempts":    "outbox.backoff.max_attempts",
		"outbox_backoff_base":    "outbox.backoff.base",
		"outbox_backoff_cap":     "outbox.backoff.cap",
		"outbox_backoff_jitter":  "outbox.backoff.jitter_fraction",

		// Fan-out mappings
		"fanout_debounce_window": "fanout.debounce_window",

		// NATS mappings
		"nats_enabled":     "nats.enabled",
		"nats_url":         "nats.url",
		"nats_embedded":    "nats.embedded",
		"nats_host":        "nats.host",
		"nats_port":        "nats.port",
		"nats_max_payload": "nats.max_payload",

		// Payment mappings
		"payment_processor":       "payment.processor",
		"payment_base_url":        "payment.base_url",
		"payment_api_key":         "payment.api_key",
		"payment_timeout":         "payment.timeout",
		"payment_lock_timeout":    "payment.service.lock_timeout",
		"saf_forward_interval":    "payment.service.saf_forward_interval",
		"saf_forward_batch_size":  "payment.service.forward_batch_size",
		"breaker_timeout":         "payment.breaker.timeout",
		"breaker_failure_ratio":   "payment.breaker.failure_ratio",
		"breaker_min_requests":    "payment.breaker.min_requests",
		"breaker_inline_attempts": "payment.breaker.inline_attempts",

		// Catalog mappings
		"catalog_file":      "catalog.file",
		"catalog_cache_ttl": "catalog.cache_ttl",

		// Task queue mappings
		"task_workers":    "tasks.workers",
		"task_queue_size": "tasks.queue_size",
		"task_timeout":    "tasks.task_timeout",

		// Audit mappings
		"audit_enabled":        "audit.enabled",
		"audit_retention_days": "audit.retention_days",
		"audit_log_to_stdout":  "audit.log_to_stdout",

		// Scheduler mappings
		"idempotency_prune_interval": "scheduler.idempotency_prune_interval",
		"audit_cleanup_interval":     "scheduler.audit_cleanup_interval",
		"storage_gc_interval":        "scheduler.storage_gc_interval",

		// Backup mappings
		"backup_enabled":           "backup.enabled",
		"backup_dir":               "backup.dir",
		"backup_interval":          "backup.interval",
		"backup_min_count":         "backup.retention.min_count",
		"backup_max_count":         "backup.retention.max_count",
		"backup_max_age_days":      "backup.retention.max_age_days",
		"backup_keep_recent_hours": "backup.retention.keep_recent_hours",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables never
	// pollute the config.
	return ""
}
