// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package wal

import "time"

// Config configures a Badger-backed store.
type Config struct {
	// Path is the directory where BadgerDB stores its files. Empty with
	// InMemory set opens a non-durable store for tests.
	Path string

	// InMemory keeps everything in RAM. Tests only.
	InMemory bool

	// SyncWrites forces fsync after every write.
	SyncWrites bool

	// Compression enables Snappy compression of values.
	Compression bool

	// GCRatio is the value-log rewrite threshold for RunGC.
	GCRatio float64

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration

	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int
}

// DefaultConfig returns durable defaults sized for an edge box.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		SyncWrites:       true,
		Compression:      true,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
	}
}

// TestConfig returns an in-memory configuration.
func TestConfig() Config {
	cfg := DefaultConfig("")
	cfg.InMemory = true
	cfg.SyncWrites = false
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return &ConfigError{Field: "Path", Message: "storage path is required"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "storage config error: " + e.Field + ": " + e.Message
}
