// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package testinfra starts throwaway containers for integration tests.
//
// Everything here is behind the integration build tag and skips cleanly when
// Docker is not available:
//
//	func TestPostgresStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    store, err := ledger.NewPostgresStore(ctx, pg.DSN, 0)
//	    ...
//	}
//
// Run with:
//
//	go test -tags integration ./internal/ledger/...
package testinfra
