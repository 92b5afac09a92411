// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tabline/internal/apperr"
	"github.com/tomtom215/tabline/internal/catalog"
	"github.com/tomtom215/tabline/internal/models"
)

// applyMutation changes o in place. The caller holds the row lock, has
// already checked the version and the payment guard, and recalculates
// totals afterwards.
func applyMutation(ctx context.Context, cat catalog.Catalog, o *models.Order, m *models.Mutation, now time.Time) error {
	if m.ItemMutation() && !itemsEditable(o.Status) {
		return apperr.Validationf("mutation", "order is %s; items can no longer change", o.Status)
	}

	switch m.Kind {
	case models.MutationAddItem:
		return addItem(ctx, cat, o, m, now)

	case models.MutationRemoveItem:
		it, err := liveItem(o, m.ItemID)
		if err != nil {
			return err
		}
		it.DeletedAt = &now
		return nil

	case models.MutationSetQuantity:
		if m.Quantity < 1 {
			return apperr.Validation("quantity", "quantity must be at least 1; remove the item instead")
		}
		it, err := liveItem(o, m.ItemID)
		if err != nil {
			return err
		}
		it.Quantity = m.Quantity
		return nil

	case models.MutationAddModifier:
		return addModifier(ctx, cat, o, m)

	case models.MutationRemoveModifier:
		it, err := liveItem(o, m.ItemID)
		if err != nil {
			return err
		}
		for i := range it.Modifiers {
			if it.Modifiers[i].ID == m.ModifierID && it.Modifiers[i].DeletedAt == nil {
				it.Modifiers[i].DeletedAt = &now
				return nil
			}
		}
		return apperr.Validationf("modifier_id", "modifier %s is not on this item", m.ModifierID)

	case models.MutationSend:
		return send(o, now)

	case models.MutationSplit:
		if m.Checks < 2 {
			return apperr.Validation("checks", "split needs at least 2 checks")
		}
		if err := transition(o, models.StatusSplit); err != nil {
			return err
		}
		o.Checks = m.Checks
		return nil

	case models.MutationVoid:
		return transition(o, models.StatusVoided)

	case models.MutationCancel:
		return transition(o, models.StatusCancelled)

	case models.MutationClose:
		if err := transition(o, models.StatusClosed); err != nil {
			return err
		}
		o.ClosedAt = &now
		return nil

	default:
		return apperr.Validationf("kind", "unsupported mutation %q", m.Kind)
	}
}

func itemsEditable(s models.OrderStatus) bool {
	return s == models.StatusDraft || s == models.StatusSent || s == models.StatusSplit
}

func addItem(ctx context.Context, cat catalog.Catalog, o *models.Order, m *models.Mutation, now time.Time) error {
	if m.SKU == "" {
		return apperr.Validation("sku", "sku is required to add an item")
	}
	id := m.ItemID
	if id == "" {
		id = uuid.NewString()
	} else if o.FindItem(id) != nil {
		return apperr.Validationf("item_id", "item %s is already on the order", id)
	}

	p, err := catalog.Resolve(ctx, cat, o.VenueID, m.SKU, false)
	if err != nil {
		return err
	}
	qty := m.Quantity
	if qty == 0 {
		qty = 1
	}

	o.Items = append(o.Items, models.OrderItem{
		ID:         id,
		SKU:        p.SKU,
		Name:       p.Name,
		Quantity:   qty,
		UnitPrice:  p.Price,
		StationTag: p.StationTag,
		Note:       m.Note,
		AddedAt:    now,
	})
	return nil
}

func addModifier(ctx context.Context, cat catalog.Catalog, o *models.Order, m *models.Mutation) error {
	if m.SKU == "" {
		return apperr.Validation("sku", "sku is required to add a modifier")
	}
	it, err := liveItem(o, m.ItemID)
	if err != nil {
		return err
	}
	id := m.ModifierID
	if id == "" {
		id = uuid.NewString()
	}
	for i := range it.Modifiers {
		if it.Modifiers[i].ID == id {
			return apperr.Validationf("modifier_id", "modifier %s is already on this item", id)
		}
	}

	p, err := catalog.Resolve(ctx, cat, o.VenueID, m.SKU, true)
	if err != nil {
		return err
	}
	it.Modifiers = append(it.Modifiers, models.Modifier{
		ID:    id,
		SKU:   p.SKU,
		Name:  p.Name,
		Price: p.Price,
	})
	return nil
}

// send stamps every live unsent item and moves a draft to sent. Sending an
// order that already went to the kitchen fires only the new items.
func send(o *models.Order, now time.Time) error {
	if o.Status == models.StatusDraft {
		if err := transition(o, models.StatusSent); err != nil {
			return err
		}
	} else if !itemsEditable(o.Status) {
		return statusError(o.Status, models.StatusSent)
	}

	fired := 0
	for i := range o.Items {
		it := &o.Items[i]
		if it.Live() && it.SentAt == nil {
			it.SentAt = &now
			fired++
		}
	}
	if fired == 0 {
		return apperr.Validation("mutation", "nothing new to send to the kitchen")
	}
	return nil
}

func liveItem(o *models.Order, id string) (*models.OrderItem, error) {
	if id == "" {
		return nil, apperr.Validation("item_id", "item_id is required")
	}
	it := o.FindItem(id)
	if it == nil || !it.Live() {
		return nil, apperr.Validationf("item_id", "item %s is not on this order", id)
	}
	return it, nil
}

func transition(o *models.Order, to models.OrderStatus) error {
	if !models.CanTransition(o.Status, to) {
		return statusError(o.Status, to)
	}
	o.Status = to
	return nil
}

// statusError explains a refused status change in terms a server can act on.
func statusError(from, to models.OrderStatus) error {
	switch from {
	case models.StatusPaid:
		if to == models.StatusVoided || to == models.StatusCancelled {
			return apperr.Validation("status", "order was already paid on another terminal; void the payment first")
		}
		return apperr.Validation("status", "order was already paid on another terminal")
	case models.StatusPartiallyPaid:
		return apperr.Validation("status", "order has a payment; void the payment or collect the balance first")
	case models.StatusClosed:
		return apperr.Validation("status", "order is closed; a manager must reopen it first")
	case models.StatusVoided:
		return apperr.Validation("status", "order was voided; a manager must reopen it first")
	case models.StatusCancelled:
		return apperr.Validation("status", "order was cancelled; a manager must reopen it first")
	}
	if to == models.StatusClosed {
		return apperr.Validation("status", "order still has a balance due and cannot be closed")
	}
	return apperr.Validation("status", fmt.Sprintf("order cannot move from %s to %s", from, to))
}
