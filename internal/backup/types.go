// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package backup

import (
	"time"
)

// Status represents the current state of a backup
type Status string

const (
	// StatusInProgress indicates the backup is currently running
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates the backup finished successfully
	StatusCompleted Status = "completed"

	// StatusFailed indicates the backup failed
	StatusFailed Status = "failed"

	// StatusCorrupted indicates the backup file no longer matches its checksum
	StatusCorrupted Status = "corrupted"
)

// Trigger indicates what initiated the backup
type Trigger string

const (
	// TriggerManual indicates the backup was requested by an operator
	TriggerManual Trigger = "manual"

	// TriggerScheduled indicates the backup was taken by the scheduler
	TriggerScheduled Trigger = "scheduled"

	// TriggerPreRestore indicates the backup was taken before a restore
	TriggerPreRestore Trigger = "pre_restore"
)

// Backup is the metadata of one snapshot file.
type Backup struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Trigger     Trigger    `json:"trigger"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Duration of the backup operation
	Duration time.Duration `json:"duration_ms"`

	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`

	// SHA-256 of the compressed file
	Checksum string `json:"checksum"`

	// Version is the Badger version the snapshot covers up to.
	Version uint64 `json:"version"`

	Notes string `json:"notes,omitempty"`
	Error string `json:"error,omitempty"`
}

// RetentionPolicy decides which completed snapshots survive Cleanup.
type RetentionPolicy struct {
	// MinCount snapshots are always kept, however old.
	MinCount int `koanf:"min_count"`

	// MaxCount caps the number kept. Zero means no cap.
	MaxCount int `koanf:"max_count"`

	// MaxAgeDays deletes older snapshots beyond MinCount. Zero keeps them.
	MaxAgeDays int `koanf:"max_age_days"`

	// KeepRecentHours protects every snapshot younger than this.
	KeepRecentHours int `koanf:"keep_recent_hours"`
}

// Config configures the Manager.
type Config struct {
	Enabled   bool            `koanf:"enabled"`
	Dir       string          `koanf:"dir"`
	Interval  time.Duration   `koanf:"interval"`
	Retention RetentionPolicy `koanf:"retention"`
}

// DefaultConfig takes a snapshot every six hours and keeps a week of them.
func DefaultConfig() Config {
	return Config{
		Interval: 6 * time.Hour,
		Retention: RetentionPolicy{
			MinCount:        3,
			MaxCount:        28,
			MaxAgeDays:      7,
			KeepRecentHours: 24,
		},
	}
}

// metadataFile is the index written next to the snapshots.
const metadataFile = "backups.json"

// metadata is the on-disk index of snapshots.
type metadata struct {
	Backups []*Backup `json:"backups"`
}
