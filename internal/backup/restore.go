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
)

// ErrChecksumMismatch is returned when a snapshot file was altered.
var ErrChecksumMismatch = errors.New("backup checksum mismatch")

// Loader replays a snapshot stream. *wal.DB satisfies it.
type Loader interface {
	Load(r io.Reader) error
}

// Validate re-hashes a snapshot file and marks it corrupted on mismatch.
func (m *Manager) Validate(id string) error {
	b, err := m.GetBackup(id)
	if err != nil {
		return err
	}
	if b.Status != StatusCompleted {
		return fmt.Errorf("backup %s is %s", id, b.Status)
	}

	f, err := os.Open(b.FilePath)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("read backup file: %w", err)
	}
	if hex.EncodeToString(hash.Sum(nil)) == b.Checksum {
		return nil
	}

	b.Status = StatusCorrupted
	if err := m.saveBackup(b); err != nil {
		m.logger.Warn().Err(err).Str("id", id).Msg("Failed to mark backup corrupted")
	}
	m.logger.Error().Str("id", id).Msg("Backup checksum mismatch")
	return fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
}

// Restore validates a snapshot and loads it into dst. dst should be a
// freshly opened store; the running server's store is never restored in
// place.
func (m *Manager) Restore(ctx context.Context, id string, dst Loader) error {
	if err := m.Validate(id); err != nil {
		return err
	}
	b, err := m.GetBackup(id)
	if err != nil {
		return err
	}

	f, err := os.Open(b.FilePath)
	if err != nil {
		return fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open compressed stream: %w", err)
	}
	defer gz.Close()

	if err := dst.Load(&ctxReader{ctx: ctx, r: gz}); err != nil {
		return err
	}
	m.logger.Info().Str("id", id).Uint64("version", b.Version).Msg("Backup restored")
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
