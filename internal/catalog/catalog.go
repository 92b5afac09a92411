// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package catalog is the ledger's read-only view of the menu service. The
// ledger prices every item through it instead of trusting terminal prices.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/cache"
	"github.com/tomtom215/tabline/internal/models"
)

// ErrUnknownProduct is returned when a SKU is not on the venue's menu.
var ErrUnknownProduct = errors.New("unknown product")

// Product is the price and routing information for a SKU at a venue.
type Product struct {
	SKU        string       `json:"sku" koanf:"sku"`
	Name       string       `json:"name" koanf:"name"`
	Price      models.Money `json:"price" koanf:"price"`
	Available  bool         `json:"available" koanf:"available"`
	StationTag string       `json:"station_tag,omitempty" koanf:"station_tag"`
	Modifier   bool         `json:"modifier,omitempty" koanf:"modifier"`
}

// Catalog looks up products.
type Catalog interface {
	Lookup(ctx context.Context, venueID, sku string) (Product, error)
}

// StaticCatalog serves a fixed menu keyed by venue then SKU.
type StaticCatalog struct {
	mu       sync.RWMutex
	products map[string]map[string]Product
}

// NewStatic creates a StaticCatalog from a venue -> products map.
func NewStatic(menus map[string][]Product) *StaticCatalog {
	c := &StaticCatalog{products: make(map[string]map[string]Product)}
	for venue, products := range menus {
		for _, p := range products {
			c.put(venue, p)
		}
	}
	return c
}

// LoadFile reads a JSON menu file of the form {"venue-id": [products...]}.
func LoadFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu %s: %w", path, err)
	}
	var menus map[string][]Product
	if err := json.Unmarshal(data, &menus); err != nil {
		return nil, fmt.Errorf("parse menu %s: %w", path, err)
	}
	return NewStatic(menus), nil
}

// Put adds or replaces a product.
func (c *StaticCatalog) Put(venueID string, p Product) {
	c.put(venueID, p)
}

func (c *StaticCatalog) put(venueID string, p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.products[venueID] == nil {
		c.products[venueID] = make(map[string]Product)
	}
	c.products[venueID][p.SKU] = p
}

// Lookup implements Catalog.
func (c *StaticCatalog) Lookup(_ context.Context, venueID, sku string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[venueID][sku]
	if !ok {
		return Product{}, fmt.Errorf("%s at venue %s: %w", sku, venueID, ErrUnknownProduct)
	}
	return p, nil
}

// CachedCatalog wraps a remote catalog with a short-lived cache so the
// ledger does not call the menu service on every item mutation.
type CachedCatalog struct {
	next  Catalog
	cache *cache.Cache[Product]
}

// NewCached wraps next with a TTL cache.
func NewCached(next Catalog, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		next:  next,
		cache: cache.New[Product](ttl, 5*ttl),
	}
}

// Lookup implements Catalog. Unknown-product answers are not cached.
func (c *CachedCatalog) Lookup(ctx context.Context, venueID, sku string) (Product, error) {
	key := venueID + "/" + sku
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := c.next.Lookup(ctx, venueID, sku)
	if err != nil {
		return Product{}, err
	}
	c.cache.Set(key, p)
	return p, nil
}

// Invalidate drops a cached product after a menu change.
func (c *CachedCatalog) Invalidate(venueID, sku string) {
	c.cache.Delete(venueID + "/" + sku)
}

// Close releases the cache cleanup goroutine.
func (c *CachedCatalog) Close() {
	c.cache.Close()
}

// Resolve looks up a SKU for an order mutation and converts catalog
// failures into user-facing validation errors.
func Resolve(ctx context.Context, c Catalog, venueID, sku string, modifier bool) (Product, error) {
	p, err := c.Lookup(ctx, venueID, sku)
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) {
			return Product{}, apperr.Validationf("sku", "%s is not on the menu", sku)
		}
		return Product{}, apperr.Transient("catalog lookup", err)
	}
	if !p.Available {
		return Product{}, apperr.Validationf("sku", "%s is 86'd and cannot be ordered", p.Name)
	}
	if p.Modifier != modifier {
		if modifier {
			return Product{}, apperr.Validationf("sku", "%s is not a modifier", p.Name)
		}
		return Product{}, apperr.Validationf("sku", "%s can only be added as a modifier", p.Name)
	}
	return p, nil
}
