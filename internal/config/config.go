// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package config

import (
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/tabline/internal/audit"
	"github.com/tomtom215/tabline/internal/backoff"
	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/ledger"
	"github.com/tomtom215/tabline/internal/outbox"
	"github.com/tomtom215/tabline/internal/payment"
	"github.com/tomtom215/tabline/internal/tasks"
)

// Deployment roles. The cloud service is the system of record; an edge
// server keeps a venue running offline and relays its writes upstream.
const (
	RoleCloud = "cloud"
	RoleEdge  = "edge"
)

// Config holds all application configuration.
//
// Load order is defaults, then the optional YAML file, then environment
// variables (see envTransformFunc for the supported names).
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Security  SecurityConfig  `koanf:"security"`
	Storage   StorageConfig   `koanf:"storage"`
	Ledger    ledger.Config   `koanf:"ledger"`
	Postgres  PostgresConfig  `koanf:"postgres"`
	Redis     RedisConfig     `koanf:"redis"`
	Outbox    OutboxConfig    `koanf:"outbox"`
	Fanout    FanoutConfig    `koanf:"fanout"`
	NATS      NATSConfig      `koanf:"nats"`
	Payment   PaymentConfig   `koanf:"payment"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Tasks     tasks.Config    `koanf:"tasks"`
	Audit     audit.Config    `koanf:"audit"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Backup    backup.Config   `koanf:"backup"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Role            string        `koanf:"role"`
	VenueID         string        `koanf:"venue_id"` // Required for edge
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds authentication and authorization settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // jwt or none
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// Terminals lists enrolled terminals. Secrets are bcrypt hashes.
	Terminals []TerminalEnrolment `koanf:"terminals"`

	LockoutAttempts int           `koanf:"lockout_attempts"`
	LockoutDuration time.Duration `koanf:"lockout_duration"`

	Casbin CasbinConfig `koanf:"casbin"`
}

// TerminalEnrolment is one terminal allowed to log in.
type TerminalEnrolment struct {
	VenueID    string `koanf:"venue_id"`
	TerminalID string `koanf:"terminal_id"`
	SecretHash string `koanf:"secret_hash"`
	Role       string `koanf:"role"`
}

// CasbinConfig holds Casbin RBAC settings. Empty paths use the embedded
// model and policy.
type CasbinConfig struct {
	ModelPath  string        `koanf:"model_path"`
	PolicyPath string        `koanf:"policy_path"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// StorageConfig locates the local BadgerDB used for the outbox, the order
// cache, payment records and the store-and-forward queue.
type StorageConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// PostgresConfig enables the Postgres order store. When disabled the
// ledger keeps orders in memory.
type PostgresConfig struct {
	Enabled  bool   `koanf:"enabled"`
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// RedisConfig enables the shared idempotency store for multi-replica
// cloud deployments.
type RedisConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// OutboxConfig configures the edge relay to the cloud.
type OutboxConfig struct {
	Enabled        bool           `koanf:"enabled"`
	UpstreamURL    string         `koanf:"upstream_url"`
	UpstreamToken  string         `koanf:"upstream_token"`
	RequestTimeout time.Duration  `koanf:"request_timeout"`
	Engine         outbox.Config  `koanf:"engine"`
	Backoff        backoff.Config `koanf:"backoff"`
}

// FanoutConfig tunes real-time notifications.
type FanoutConfig struct {
	DebounceWindow time.Duration `koanf:"debounce_window"`
}

// NATSConfig switches the event bus from in-process channels to NATS.
type NATSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	URL        string `koanf:"url"`
	Embedded   bool   `koanf:"embedded"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	MaxPayload int32  `koanf:"max_payload"`
}

// PaymentConfig selects and tunes the payment processor.
type PaymentConfig struct {
	Processor string                `koanf:"processor"` // simulated or http
	BaseURL   string                `koanf:"base_url"`
	APIKey    string                `koanf:"api_key"`
	Timeout   time.Duration         `koanf:"timeout"`
	Service   payment.Config        `koanf:"service"`
	Breaker   payment.BreakerConfig `koanf:"breaker"`
}

// CatalogConfig points at the menu file.
type CatalogConfig struct {
	File     string        `koanf:"file"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// SchedulerConfig sets the periodic maintenance jobs. Zero disables a job.
type SchedulerConfig struct {
	IdempotencyPruneInterval time.Duration `koanf:"idempotency_prune_interval"`
	AuditCleanupInterval     time.Duration `koanf:"audit_cleanup_interval"`
	StorageGCInterval        time.Duration `koanf:"storage_gc_interval"`
}

// ListenAddr returns host:port for the HTTP server.
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// IsEdge reports whether this process runs at a venue.
func (c *Config) IsEdge() bool {
	return c.Server.Role == RoleEdge
}
