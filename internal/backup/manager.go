// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package backup

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tabline/internal/logging"
)

var (
	// ErrDisabled is returned when backups are switched off.
	ErrDisabled = errors.New("backups are disabled")

	// ErrNotFound is returned for an unknown backup ID.
	ErrNotFound = errors.New("backup not found")

	// ErrInProgress is returned when a backup is already running.
	ErrInProgress = errors.New("a backup is already in progress")
)

// Source streams a consistent snapshot. *wal.DB satisfies it.
type Source interface {
	Backup(w io.Writer, since uint64) (uint64, error)
}

// Manager takes compressed snapshots of the local store and keeps an index
// of them in Dir.
type Manager struct {
	cfg    Config
	src    Source
	logger zerolog.Logger
	now    func() time.Time

	// running serializes CreateBackup without blocking readers of metadata.
	running sync.Mutex

	metadataMu sync.RWMutex
	metadata   metadata

	onBackupComplete func(*Backup)
}

// NewManager creates Dir if needed and loads the existing index.
func NewManager(cfg Config, src Source) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	m := &Manager{
		cfg:    cfg,
		src:    src,
		logger: logging.WithComponent("backup"),
		now:    time.Now,
	}
	if err := m.loadMetadata(); err != nil {
		return nil, err
	}
	return m, nil
}

// SetOnBackupComplete registers a callback run after each successful backup.
func (m *Manager) SetOnBackupComplete(fn func(*Backup)) {
	m.onBackupComplete = fn
}

// Run takes a scheduled snapshot and applies the retention policy.
func (m *Manager) Run(ctx context.Context) error {
	if _, err := m.CreateBackup(ctx, TriggerScheduled, ""); err != nil {
		return err
	}
	_, err := m.Cleanup(ctx)
	return err
}

// CreateBackup writes a full snapshot. A failed attempt is still recorded
// in the index with its error.
func (m *Manager) CreateBackup(ctx context.Context, trigger Trigger, notes string) (*Backup, error) {
	if !m.cfg.Enabled {
		return nil, ErrDisabled
	}
	if !m.running.TryLock() {
		return nil, ErrInProgress
	}
	defer m.running.Unlock()

	start := m.now()
	b := &Backup{
		ID:        uuid.New().String(),
		Status:    StatusInProgress,
		Trigger:   trigger,
		CreatedAt: start,
		Notes:     notes,
	}
	b.FilePath = filepath.Join(m.cfg.Dir, fmt.Sprintf("snapshot-%s-%s.badger.gz", start.UTC().Format("20060102-150405"), b.ID[:8]))

	if err := m.writeSnapshot(ctx, b); err != nil {
		_ = os.Remove(b.FilePath)
		return m.fail(b, start, err)
	}

	completed := m.now()
	b.Status = StatusCompleted
	b.CompletedAt = &completed
	b.Duration = completed.Sub(start)
	if err := m.saveBackup(b); err != nil {
		return b, err
	}

	m.logger.Info().
		Str("id", b.ID).
		Str("trigger", string(trigger)).
		Int64("bytes", b.FileSize).
		Dur("duration", b.Duration).
		Msg("Backup completed")

	if m.onBackupComplete != nil {
		m.onBackupComplete(b)
	}
	return b, nil
}

func (m *Manager) writeSnapshot(ctx context.Context, b *Backup) (err error) {
	f, err := os.OpenFile(b.FilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close backup file: %w", cerr)
		}
	}()

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(f, hash)}
	gz := gzip.NewWriter(counter)

	version, err := m.src.Backup(&ctxWriter{ctx: ctx, w: gz}, 0)
	if err != nil {
		_ = gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync backup file: %w", err)
	}

	b.Version = version
	b.FileSize = counter.n
	b.Checksum = hex.EncodeToString(hash.Sum(nil))
	return nil
}

func (m *Manager) fail(b *Backup, start time.Time, cause error) (*Backup, error) {
	completed := m.now()
	b.Status = StatusFailed
	b.Error = cause.Error()
	b.CompletedAt = &completed
	b.Duration = completed.Sub(start)
	if err := m.saveBackup(b); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to record failed backup")
	}
	m.logger.Error().Err(cause).Str("id", b.ID).Msg("Backup failed")
	return b, fmt.Errorf("backup %s: %w", b.ID, cause)
}

// ListBackups returns every recorded backup, newest first.
func (m *Manager) ListBackups() []Backup {
	m.metadataMu.RLock()
	defer m.metadataMu.RUnlock()

	out := make([]Backup, 0, len(m.metadata.Backups))
	for _, b := range m.metadata.Backups {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// GetBackup returns one backup by ID.
func (m *Manager) GetBackup(id string) (*Backup, error) {
	m.metadataMu.RLock()
	defer m.metadataMu.RUnlock()
	b, _ := m.findLocked(id)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *b
	return &cp, nil
}

// DeleteBackup removes a snapshot file and its index entry.
func (m *Manager) DeleteBackup(id string) error {
	m.metadataMu.Lock()
	defer m.metadataMu.Unlock()
	return m.deleteLocked(id)
}

func (m *Manager) deleteLocked(id string) error {
	b, idx := m.findLocked(id)
	if b == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(b.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove backup file: %w", err)
	}
	m.metadata.Backups = append(m.metadata.Backups[:idx], m.metadata.Backups[idx+1:]...)
	return m.saveMetadataLocked()
}

func (m *Manager) findLocked(id string) (*Backup, int) {
	for i, b := range m.metadata.Backups {
		if b.ID == id {
			return b, i
		}
	}
	return nil, -1
}

func (m *Manager) saveBackup(b *Backup) error {
	m.metadataMu.Lock()
	defer m.metadataMu.Unlock()
	if existing, idx := m.findLocked(b.ID); existing != nil {
		m.metadata.Backups[idx] = b
	} else {
		m.metadata.Backups = append(m.metadata.Backups, b)
	}
	return m.saveMetadataLocked()
}

func (m *Manager) loadMetadata() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, metadataFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup index: %w", err)
	}
	if err := json.Unmarshal(data, &m.metadata); err != nil {
		return fmt.Errorf("parse backup index: %w", err)
	}
	return nil
}

// saveMetadataLocked writes the index through a temp file so a crash never
// leaves it half written.
func (m *Manager) saveMetadataLocked() error {
	data, err := json.MarshalIndent(m.metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup index: %w", err)
	}
	path := filepath.Join(m.cfg.Dir, metadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write backup index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace backup index: %w", err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ctxWriter stops a long snapshot when ctx is canceled.
type ctxWriter struct {
	ctx context.Context
	w   io.Writer
}

func (c *ctxWriter) Write(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.w.Write(p)
}
