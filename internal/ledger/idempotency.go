// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/cache"
	"github.com/tomtom215/tabline/internal/metrics"
	"github.com/tomtom215/tabline/internal/models"
)

// IdempotencyRecord is the stored outcome of a committed mutation.
type IdempotencyRecord struct {
	Fingerprint string        `json:"fingerprint"`
	Order       *models.Order `json:"order"`
	StoredAt    time.Time     `json:"stored_at"`
}

// IdempotencyStore caches mutation results by (venue, key). It is a fast
// path only: the keys applied to an order are also committed with the
// order itself, so losing this cache never causes a double apply.
type IdempotencyStore interface {
	Get(ctx context.Context, venueID, key string) (*IdempotencyRecord, bool, error)
	Put(ctx context.Context, venueID, key string, rec *IdempotencyRecord) error
}

// Fingerprint hashes the parts of a request that define its effect. The
// expected version is excluded so a rebased retry keeps its key.
func Fingerprint(orderID string, m *models.Mutation) string {
	data, _ := json.Marshal(m)
	h := sha256.New()
	h.Write([]byte(orderID))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// settleFingerprint identifies a payment settlement request.
func settleFingerprint(orderID string, line *models.PaymentLine) string {
	h := sha256.New()
	h.Write([]byte(orderID))
	h.Write([]byte{0})
	h.Write([]byte(line.Reference))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(int64(line.Amount), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryIdempotencyStore keeps records in a TTL cache.
type MemoryIdempotencyStore struct {
	cache *cache.Cache[*IdempotencyRecord]
}

// NewMemoryIdempotencyStore creates a store retaining records for ttl.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{cache: cache.New[*IdempotencyRecord](ttl, 0)}
}

func idemKey(venueID, key string) string {
	return venueID + "/" + key
}

// Get implements IdempotencyStore.
func (s *MemoryIdempotencyStore) Get(_ context.Context, venueID, key string) (*IdempotencyRecord, bool, error) {
	rec, ok := s.cache.Get(idemKey(venueID, key))
	return rec, ok, nil
}

// Put implements IdempotencyStore. The first record for a key wins.
func (s *MemoryIdempotencyStore) Put(_ context.Context, venueID, key string, rec *IdempotencyRecord) error {
	s.cache.SetIfAbsent(idemKey(venueID, key), rec)
	metrics.LedgerIdempotencyEntries.Set(float64(s.cache.Len()))
	return nil
}

// Prune drops expired records and returns how many were removed. The
// scheduler calls it periodically.
func (s *MemoryIdempotencyStore) Prune(_ context.Context) int {
	n := s.cache.Prune()
	metrics.LedgerIdempotencyEntries.Set(float64(s.cache.Len()))
	return n
}

// Close stops the cache.
func (s *MemoryIdempotencyStore) Close() {
	s.cache.Close()
}
