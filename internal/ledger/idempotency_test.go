// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/tabline/internal/models"
)

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := models.Mutation{Kind: models.MutationAddItem, SKU: "burger", Quantity: 1}
	b := a
	b.Quantity = 2

	if Fingerprint("o1", &a) != Fingerprint("o1", &a) {
		t.Error("fingerprint is not stable")
	}
	if Fingerprint("o1", &a) == Fingerprint("o1", &b) {
		t.Error("different payloads share a fingerprint")
	}
	if Fingerprint("o1", &a) == Fingerprint("o2", &a) {
		t.Error("different orders share a fingerprint")
	}
}

func TestMemoryIdempotencyStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Hour)
	defer s.Close()

	if _, ok, _ := s.Get(ctx, venue, "k"); ok {
		t.Fatal("empty store returned a record")
	}

	first := &IdempotencyRecord{Fingerprint: "fp1", Order: &models.Order{ID: "o1", Version: 2}}
	second := &IdempotencyRecord{Fingerprint: "fp2", Order: &models.Order{ID: "o1", Version: 3}}
	_ = s.Put(ctx, venue, "k", first)
	_ = s.Put(ctx, venue, "k", second)

	got, ok, err := s.Get(ctx, venue, "k")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Fingerprint != "fp1" {
		t.Errorf("Fingerprint = %q, want first writer fp1", got.Fingerprint)
	}
	if _, ok, _ := s.Get(ctx, "v2", "k"); ok {
		t.Error("keys leaked across venues")
	}
}

func TestMemoryIdempotencyStorePrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryIdempotencyStore(time.Millisecond)
	defer s.Close()

	_ = s.Put(ctx, venue, "k", &IdempotencyRecord{Fingerprint: "fp"})
	time.Sleep(5 * time.Millisecond)
	if n := s.Prune(ctx); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
}
