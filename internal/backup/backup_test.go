// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/tabline/internal/wal"
)

type record struct {
	Name string `json:"name"`
}

func openStore(t *testing.T) *wal.DB {
	t.Helper()
	db, err := wal.Open(wal.TestConfig())
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestManager(t *testing.T, src Source) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Dir = t.TempDir()
	m, err := NewManager(cfg, src)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestBackupAndRestore(t *testing.T) {
	src := openStore(t)
	err := src.Update(func(txn *badger.Txn) error {
		for i := 0; i < 50; i++ {
			if err := wal.SetJSON(txn, fmt.Sprintf("entry:%03d", i), record{Name: fmt.Sprint(i)}, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}

	m := newTestManager(t, src)
	b, err := m.CreateBackup(context.Background(), TriggerManual, "test")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	if b.Status != StatusCompleted || b.Checksum == "" || b.FileSize == 0 {
		t.Fatalf("CreateBackup() = %+v", b)
	}
	if err := m.Validate(b.ID); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	dst := openStore(t)
	if err := m.Restore(context.Background(), b.ID, dst); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	var n int
	var last record
	err = dst.View(func(txn *badger.Txn) error {
		n = wal.Count(txn, "entry:")
		return wal.GetJSON(txn, "entry:049", &last)
	})
	if err != nil {
		t.Fatalf("read restored store error = %v", err)
	}
	if n != 50 || last.Name != "49" {
		t.Errorf("restored %d entries, last = %+v; want 50 and 49", n, last)
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	src := openStore(t)
	m := newTestManager(t, src)
	b, err := m.CreateBackup(context.Background(), TriggerScheduled, "")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	reopened, err := NewManager(m.cfg, src)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	got, err := reopened.GetBackup(b.ID)
	if err != nil {
		t.Fatalf("GetBackup() error = %v", err)
	}
	if got.Checksum != b.Checksum || got.Trigger != TriggerScheduled {
		t.Errorf("reloaded backup = %+v, want %+v", got, b)
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	m := newTestManager(t, openStore(t))
	b, err := m.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}

	f, err := os.OpenFile(b.FilePath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	_, _ = f.Write([]byte("tampered"))
	_ = f.Close()

	if err := m.Validate(b.ID); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Validate() error = %v, want ErrChecksumMismatch", err)
	}
	got, _ := m.GetBackup(b.ID)
	if got.Status != StatusCorrupted {
		t.Errorf("Status = %s, want corrupted", got.Status)
	}
	if err := m.Restore(context.Background(), b.ID, openStore(t)); err == nil {
		t.Error("Restore() should refuse a corrupted snapshot")
	}
}

type failingSource struct{}

func (failingSource) Backup(io.Writer, uint64) (uint64, error) {
	return 0, errors.New("disk on fire")
}

func TestFailedBackupIsRecordedAndCleaned(t *testing.T) {
	m := newTestManager(t, failingSource{})
	b, err := m.CreateBackup(context.Background(), TriggerScheduled, "")
	if err == nil {
		t.Fatal("CreateBackup() should fail")
	}
	if b == nil || b.Status != StatusFailed || b.Error == "" {
		t.Fatalf("failed backup = %+v", b)
	}
	if _, statErr := os.Stat(b.FilePath); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial snapshot file left behind: %v", statErr)
	}

	removed, err := m.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if removed != 1 || len(m.ListBackups()) != 0 {
		t.Errorf("Cleanup() removed %d, %d left; want 1 and 0", removed, len(m.ListBackups()))
	}
}

func TestDisabled(t *testing.T) {
	m := newTestManager(t, openStore(t))
	m.cfg.Enabled = false
	if _, err := m.CreateBackup(context.Background(), TriggerManual, ""); !errors.Is(err, ErrDisabled) {
		t.Errorf("CreateBackup() error = %v, want ErrDisabled", err)
	}
}

func TestDeleteBackup(t *testing.T) {
	m := newTestManager(t, openStore(t))
	b, err := m.CreateBackup(context.Background(), TriggerManual, "")
	if err != nil {
		t.Fatalf("CreateBackup() error = %v", err)
	}
	if err := m.DeleteBackup(b.ID); err != nil {
		t.Fatalf("DeleteBackup() error = %v", err)
	}
	if _, err := os.Stat(b.FilePath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("snapshot file still present: %v", err)
	}
	if err := m.DeleteBackup(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteBackup() error = %v, want ErrNotFound", err)
	}
}

func TestSelectExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Newest first, one per day.
	mk := func(n int) []*Backup {
		out := make([]*Backup, n)
		for i := range out {
			out[i] = &Backup{ID: fmt.Sprintf("b%02d", i), CreatedAt: now.Add(-time.Duration(i) * 24 * time.Hour)}
		}
		return out
	}
	ids := func(bs []*Backup) map[string]bool {
		m := make(map[string]bool, len(bs))
		for _, b := range bs {
			m[b.ID] = true
		}
		return m
	}

	tests := []struct {
		name    string
		n       int
		policy  RetentionPolicy
		expired []string
	}{
		{
			name:   "nothing to do",
			n:      3,
			policy: RetentionPolicy{MinCount: 1, MaxCount: 5, MaxAgeDays: 7},
		},
		{
			name:    "age limit",
			n:       10,
			policy:  RetentionPolicy{MinCount: 1, MaxAgeDays: 7},
			expired: []string{"b08", "b09"},
		},
		{
			name:    "min count protects old snapshots",
			n:       3,
			policy:  RetentionPolicy{MinCount: 3, MaxAgeDays: 1},
			expired: nil,
		},
		{
			name:    "count cap drops oldest first",
			n:       6,
			policy:  RetentionPolicy{MinCount: 1, MaxCount: 4},
			expired: []string{"b04", "b05"},
		},
		{
			name:    "recent hours beat count cap",
			n:       4,
			policy:  RetentionPolicy{MaxCount: 1, KeepRecentHours: 49},
			expired: []string{"b03"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(selectExpired(mk(tt.n), tt.policy, now))
			if len(got) != len(tt.expired) {
				t.Fatalf("expired = %v, want %v", got, tt.expired)
			}
			for _, id := range tt.expired {
				if !got[id] {
					t.Errorf("expired = %v, missing %s", got, id)
				}
			}
		})
	}
}
