// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package api

import (
	"net/http"
	"os"
	"testing"

	"github.com/tomtom215/tabline/internal/backup"
	"github.com/tomtom215/tabline/internal/wal"
)

func TestBackupEndpoints(t *testing.T) {
	f := newFixture(t)

	// Disabled on this node.
	rec := f.do(t, adminActor, http.MethodGet, "/api/v1/admin/backups", nil)
	expectStatus(t, rec, http.StatusNotFound)

	db, err := wal.Open(wal.TestConfig())
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cfg := backup.DefaultConfig()
	cfg.Enabled = true
	cfg.Dir = t.TempDir()
	m, err := backup.NewManager(cfg, db)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	f.handler.SetBackupManager(m)

	// Managers may look but not take snapshots.
	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/admin/backups", CreateBackupRequest{Notes: "pre-upgrade"})
	expectStatus(t, rec, http.StatusForbidden)

	rec = f.do(t, adminActor, http.MethodPost, "/api/v1/admin/backups", CreateBackupRequest{Notes: "pre-upgrade"})
	expectStatus(t, rec, http.StatusCreated)
	var created backup.Backup
	decode(t, rec, &created)
	if created.ID == "" || created.Status != backup.StatusCompleted || created.Notes != "pre-upgrade" {
		t.Fatalf("created = %+v", created)
	}

	var list []backup.Backup
	rec = f.do(t, managerActor, http.MethodGet, "/api/v1/admin/backups", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}

	var result BackupValidationResponse
	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/admin/backups/"+created.ID+"/validate", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &result)
	if !result.Valid {
		t.Errorf("fresh snapshot reported invalid: %+v", result)
	}

	if err := os.WriteFile(created.FilePath, []byte("not a snapshot"), 0o600); err != nil {
		t.Fatal(err)
	}
	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/admin/backups/"+created.ID+"/validate", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &result)
	if result.Valid || result.Error == "" {
		t.Errorf("tampered snapshot = %+v, want invalid", result)
	}

	rec = f.do(t, managerActor, http.MethodPost, "/api/v1/admin/backups/nope/validate", nil)
	expectStatus(t, rec, http.StatusNotFound)
}
