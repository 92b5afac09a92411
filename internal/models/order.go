// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

import (
	"time"
)

// Money is an amount in minor currency units (cents).
type Money int64

// Order is the aggregate root for an open or settled check.
// Version increases by exactly one on every committed write.
type Order struct {
	ID              string        `json:"id"`
	VenueID         string        `json:"venue_id"`
	Status          OrderStatus   `json:"status"`
	Version         int64         `json:"version"`
	Totals          Totals        `json:"totals"`
	OwnerTerminalID string        `json:"owner_terminal_id"`
	OwnerEmployeeID string        `json:"owner_employee_id,omitempty"`
	TableLabel      string        `json:"table_label,omitempty"`
	Checks          int           `json:"checks,omitempty"` // Number of split checks, 0 when not split
	Items           []OrderItem   `json:"items"`
	Payments        []PaymentLine `json:"payments,omitempty"`
	ReopenCount     int           `json:"reopen_count,omitempty"`
	ChangeSeq       int64         `json:"change_seq"` // Store-wide change cursor stamped on every write
	AppliedKeys     []AppliedKey  `json:"-"`          // Persisted separately; never sent to terminals
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`
}

// Totals are denormalized from items and payments. They are recomputed in
// the same locked write as the fields they derive from.
type Totals struct {
	Subtotal      Money `json:"subtotal"`
	ModifierTotal Money `json:"modifier_total"`
	Total         Money `json:"total"`
	Paid          Money `json:"paid"`
	BalanceDue    Money `json:"balance_due"`
	ItemCount     int   `json:"item_count"`
}

// OrderItem is a line on an order. Items are soft-deleted so concurrent
// readers never see a dangling reference.
type OrderItem struct {
	ID         string     `json:"id"`
	SKU        string     `json:"sku"`
	Name       string     `json:"name"`
	Quantity   int        `json:"quantity"`
	UnitPrice  Money      `json:"unit_price"`
	StationTag string     `json:"station_tag,omitempty"`
	Note       string     `json:"note,omitempty"`
	Modifiers  []Modifier `json:"modifiers,omitempty"`
	AddedAt    time.Time  `json:"added_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Live reports whether the item has not been soft-deleted.
func (i *OrderItem) Live() bool {
	return i.DeletedAt == nil
}

// Modifier is an add-on to an item (e.g. "no onions", "extra cheese").
type Modifier struct {
	ID        string     `json:"id"`
	SKU       string     `json:"sku"`
	Name      string     `json:"name"`
	Price     Money      `json:"price"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// PaymentLineState is the ledger's view of a payment against the order.
type PaymentLineState string

const (
	PaymentLineCaptured PaymentLineState = "captured"
	PaymentLineVoided   PaymentLineState = "voided"
)

// PaymentLine mirrors a processor capture on the order.
type PaymentLine struct {
	Reference  string           `json:"reference"`
	Amount     Money            `json:"amount"`
	State      PaymentLineState `json:"state"`
	Offline    bool             `json:"offline,omitempty"`
	CapturedAt time.Time        `json:"captured_at"`
	VoidedAt   *time.Time       `json:"voided_at,omitempty"`
}

// AppliedKey records an idempotency key committed with the order itself, so
// a retried mutation is recognised even if the idempotency cache was lost.
type AppliedKey struct {
	Key         string    `json:"key"`
	Fingerprint string    `json:"fingerprint"`
	Version     int64     `json:"version"`
	At          time.Time `json:"at"`
}

// FindAppliedKey returns the applied key record for key, if retained.
func (o *Order) FindAppliedKey(key string) *AppliedKey {
	for i := range o.AppliedKeys {
		if o.AppliedKeys[i].Key == key {
			return &o.AppliedKeys[i]
		}
	}
	return nil
}

// HasPayments reports whether any payment record exists on the order,
// voided or not. Once money has moved the item list is frozen.
func (o *Order) HasPayments() bool {
	return len(o.Payments) > 0
}

// FindItem returns a pointer to the live or deleted item with the given ID.
func (o *Order) FindItem(id string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// FindPayment returns the payment line with the given processor reference.
func (o *Order) FindPayment(reference string) *PaymentLine {
	for i := range o.Payments {
		if o.Payments[i].Reference == reference {
			return &o.Payments[i]
		}
	}
	return nil
}

// StationTags returns the distinct station tags of live items.
func (o *Order) StationTags() []string {
	seen := make(map[string]struct{})
	var tags []string
	for i := range o.Items {
		it := &o.Items[i]
		if !it.Live() || it.StationTag == "" {
			continue
		}
		if _, ok := seen[it.StationTag]; ok {
			continue
		}
		seen[it.StationTag] = struct{}{}
		tags = append(tags, it.StationTag)
	}
	return tags
}

// Recalculate recomputes Totals from the live items and captured payments.
func (o *Order) Recalculate() {
	var t Totals
	for i := range o.Items {
		it := &o.Items[i]
		if !it.Live() {
			continue
		}
		qty := Money(it.Quantity)
		t.Subtotal += it.UnitPrice * qty
		for j := range it.Modifiers {
			if it.Modifiers[j].DeletedAt == nil {
				t.ModifierTotal += it.Modifiers[j].Price * qty
			}
		}
		t.ItemCount += it.Quantity
	}
	t.Total = t.Subtotal + t.ModifierTotal

	for i := range o.Payments {
		if o.Payments[i].State == PaymentLineCaptured {
			t.Paid += o.Payments[i].Amount
		}
	}
	t.BalanceDue = t.Total - t.Paid
	if t.BalanceDue < 0 {
		t.BalanceDue = 0
	}
	o.Totals = t
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i := range o.Items {
		c.Items[i] = o.Items[i]
		if o.Items[i].Modifiers != nil {
			c.Items[i].Modifiers = append([]Modifier(nil), o.Items[i].Modifiers...)
		}
	}
	if o.Payments != nil {
		c.Payments = append([]PaymentLine(nil), o.Payments...)
	}
	if o.AppliedKeys != nil {
		c.AppliedKeys = append([]AppliedKey(nil), o.AppliedKeys...)
	}
	return &c
}
