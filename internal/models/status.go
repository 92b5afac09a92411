// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusDraft         OrderStatus = "draft"
	StatusSent          OrderStatus = "sent"
	StatusSplit         OrderStatus = "split"
	StatusPartiallyPaid OrderStatus = "partially_paid"
	StatusPaid          OrderStatus = "paid"
	StatusClosed        OrderStatus = "closed"
	StatusVoided        OrderStatus = "voided"
	StatusCancelled     OrderStatus = "cancelled"
)

// transitions lists the forward moves allowed from each status. Terminal
// statuses have no entry; leaving them requires an explicit reopen.
var transitions = map[OrderStatus][]OrderStatus{
	StatusDraft:         {StatusSent, StatusPartiallyPaid, StatusPaid, StatusVoided, StatusCancelled},
	StatusSent:          {StatusSplit, StatusPartiallyPaid, StatusPaid, StatusVoided, StatusCancelled},
	StatusSplit:         {StatusPartiallyPaid, StatusPaid, StatusVoided, StatusCancelled},
	StatusPartiallyPaid: {StatusPaid, StatusVoided},
	StatusPaid:          {StatusClosed},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no forward transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusClosed || s == StatusVoided || s == StatusCancelled
}

// Open reports whether the order still belongs on terminals' working set.
func (s OrderStatus) Open() bool {
	return !s.Terminal()
}

// AcceptsPayment reports whether a capture may be applied in this status.
func (s OrderStatus) AcceptsPayment() bool {
	switch s {
	case StatusDraft, StatusSent, StatusSplit, StatusPartiallyPaid:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusSplit, StatusPartiallyPaid,
		StatusPaid, StatusClosed, StatusVoided, StatusCancelled:
		return true
	}
	return false
}
