// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*mockService)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitStarted(t *testing.T, svc *mockService, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for svc.starts.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("%s started %d times, want at least %d", svc.name, svc.starts.Load(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewSupervisorTreeDefaults(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	if tree.Root() == nil {
		t.Fatal("root supervisor is nil")
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
	}
}

func TestSupervisorTreeRunsEveryLayer(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{
		FailureBackoff:  50 * time.Millisecond,
		ShutdownTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	services := map[string]*mockService{
		"data":      newMockService("task-queue", 0),
		"sync":      newMockService("outbox-engine", 0),
		"messaging": newMockService("event-bridge", 0),
		"api":       newMockService("http-server", 0),
	}
	tree.AddDataService(services["data"])
	tree.AddSyncService(services["sync"])
	tree.AddMessagingService(services["messaging"])
	tree.AddAPIService(services["api"])

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	for layer, svc := range services {
		t.Run(layer, func(t *testing.T) { waitStarted(t, svc, 1) })
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down")
	}
	for _, svc := range services {
		if svc.stops.Load() != svc.starts.Load() {
			t.Errorf("%s: %d starts, %d stops", svc.name, svc.starts.Load(), svc.stops.Load())
		}
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services: %v", report)
	}
}

func TestFailingSyncServiceIsIsolated(t *testing.T) {
	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	flaky := newMockService("outbox-engine", 2)
	api := newMockService("http-server", 0)
	tree.AddSyncService(flaky)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)

	waitStarted(t, flaky, 3)
	waitStarted(t, api, 1)
	if got := api.starts.Load(); got != 1 {
		t.Errorf("api restarted %d times because of a sync failure", got-1)
	}
}

func TestRemoveSyncService(t *testing.T) {
	tree, _ := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := newMockService("relay", 0)
	token := tree.AddSyncService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tree.ServeBackground(ctx)
	waitStarted(t, svc, 1)

	if err := tree.RemoveSyncService(token); err != nil {
		t.Fatalf("RemoveSyncService() error = %v", err)
	}
	if svc.stops.Load() != 1 {
		t.Errorf("stops = %d, want 1", svc.stops.Load())
	}
}
