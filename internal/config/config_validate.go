// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/tabline/internal/fanout"
	"github.com/tomtom215/tabline/internal/models"
)

// minJWTSecretLength is the shortest HS256 secret accepted.
const minJWTSecretLength = 32

// ConfigError names the setting that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateSecurity,
		c.validateStorage,
		c.validateLedger,
		c.validatePostgres,
		c.validateRedis,
		c.validateOutbox,
		c.validateFanout,
		c.validateNATS,
		c.validatePayment,
		c.validateTasks,
		c.validateBackup,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	switch c.Server.Role {
	case RoleCloud:
	case RoleEdge:
		if c.Server.VenueID == "" {
			return invalid("server.venue_id", "is required when server.role is edge")
		}
	default:
		return invalid("server.role", "must be cloud or edge, got %q", c.Server.Role)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return invalid("server.timeout", "must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return invalid("logging.level", "must be trace, debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return invalid("logging.format", "must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := &c.Security
	switch s.AuthMode {
	case "none":
		if c.Server.Environment == "production" {
			return invalid("security.auth_mode", "none is not allowed in production")
		}
		return nil
	case "jwt":
	default:
		return invalid("security.auth_mode", "must be jwt or none, got %q", s.AuthMode)
	}
	if len(s.JWTSecret) < minJWTSecretLength {
		return invalid("security.jwt_secret", "must be at least %d characters", minJWTSecretLength)
	}
	if s.TokenTTL <= 0 {
		return invalid("security.token_ttl", "must be positive")
	}
	if !s.RateLimitDisabled && (s.RateLimitReqs < 1 || s.RateLimitWindow <= 0) {
		return invalid("security.rate_limit_reqs", "rate limit needs positive requests and window")
	}
	for i, t := range s.Terminals {
		field := fmt.Sprintf("security.terminals[%d]", i)
		if t.VenueID == "" || t.TerminalID == "" {
			return invalid(field, "venue_id and terminal_id are required")
		}
		if !strings.HasPrefix(t.SecretHash, "$2") {
			return invalid(field+".secret_hash", "must be a bcrypt hash")
		}
		if !models.IsValidRole(t.Role) {
			return invalid(field+".role", "must be one of %s", strings.Join(models.ValidRoles, ", "))
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.Path == "" && !c.Storage.InMemory {
		return invalid("storage.path", "is required unless storage.in_memory is set")
	}
	return nil
}

func (c *Config) validateLedger() error {
	l := &c.Ledger
	if l.LockTimeout <= 0 {
		return invalid("ledger.lock_timeout", "must be positive")
	}
	if l.IdempotencyTTL <= 0 {
		return invalid("ledger.idempotency_ttl", "must be positive")
	}
	if l.AppliedKeyRetention < 1 {
		return invalid("ledger.applied_key_retention", "must be at least 1")
	}
	if l.ReopenBurst < 1 {
		return invalid("ledger.reopen_burst", "must be at least 1")
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if !c.Postgres.Enabled {
		return nil
	}
	if c.Postgres.DSN == "" {
		return invalid("postgres.dsn", "is required when postgres.enabled is set")
	}
	if c.Postgres.MaxConns < 1 {
		return invalid("postgres.max_conns", "must be at least 1")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return invalid("redis.addr", "is required when redis.enabled is set")
	}
	return nil
}

func (c *Config) validateOutbox() error {
	o := &c.Outbox
	if !o.Enabled {
		return nil
	}
	if !c.IsEdge() {
		return invalid("outbox.enabled", "the relay outbox only runs on an edge server")
	}
	if err := validateHTTPURL(o.UpstreamURL); err != nil {
		return invalid("outbox.upstream_url", "%v", err)
	}
	if o.Engine.Workers < 1 {
		return invalid("outbox.engine.workers", "must be at least 1")
	}
	if o.Engine.PollInterval <= 0 {
		return invalid("outbox.engine.poll_interval", "must be positive")
	}
	if o.Backoff.MaxAttempts < 1 {
		return invalid("outbox.backoff.max_attempts", "must be at least 1")
	}
	if o.Backoff.Base <= 0 || o.Backoff.Cap < o.Backoff.Base {
		return invalid("outbox.backoff.cap", "base must be positive and cap at least base")
	}
	if o.Backoff.JitterFraction < 0 || o.Backoff.JitterFraction > 1 {
		return invalid("outbox.backoff.jitter_fraction", "must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateFanout() error {
	if err := fanout.ValidateWindow(c.Fanout.DebounceWindow); err != nil {
		return invalid("fanout.debounce_window", "%v", err)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled || c.NATS.Embedded {
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return invalid("nats.url", "%v", err)
	}
	return nil
}

func (c *Config) validatePayment() error {
	p := &c.Payment
	switch p.Processor {
	case "simulated":
		if c.Server.Environment == "production" {
			return invalid("payment.processor", "the simulated processor is not allowed in production")
		}
	case "http":
		if err := validateHTTPURL(p.BaseURL); err != nil {
			return invalid("payment.base_url", "%v", err)
		}
	default:
		return invalid("payment.processor", "must be simulated or http, got %q", p.Processor)
	}
	if p.Service.ForwardBatchSize < 1 {
		return invalid("payment.service.forward_batch_size", "must be at least 1")
	}
	if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
		return invalid("payment.breaker.failure_ratio", "must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateTasks() error {
	if c.Tasks.Workers < 1 || c.Tasks.Workers > 64 {
		return invalid("tasks.workers", "must be between 1 and 64")
	}
	if c.Tasks.QueueSize < 1 {
		return invalid("tasks.queue_size", "must be at least 1")
	}
	return nil
}

func (c *Config) validateBackup() error {
	b := &c.Backup
	if !b.Enabled {
		return nil
	}
	if c.Storage.InMemory {
		return invalid("backup.enabled", "cannot back up in-memory storage")
	}
	if b.Dir == "" {
		return invalid("backup.dir", "is required when backups are enabled")
	}
	if b.Interval < time.Minute {
		return invalid("backup.interval", "must be at least 1m")
	}
	if r := b.Retention; r.MaxCount > 0 && r.MaxCount < r.MinCount {
		return invalid("backup.retention.max_count", "must not be below min_count")
	}
	return nil
}

// validateHTTPURL checks for an http(s) base URL without query parameters.
func validateHTTPURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required")
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("should not contain query parameters, remove: ?%s", parsedURL.RawQuery)
	}
	return nil
}

// validateNATSURL accepts nats://, tls://, ws:// and wss:// URLs.
func validateNATSURL(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsedURL.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}
