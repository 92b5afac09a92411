// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

import "time"

// Event bus topics.
const (
	TopicOrderChanged  = "order.changed"
	TopicFleetCommands = "fleet.commands"
)

// OrderChanged is published after every committed ledger write. It is a
// liveness signal only; subscribers refetch the order to see its state.
type OrderChanged struct {
	OrderID         string       `json:"order_id"`
	VenueID         string       `json:"venue_id"`
	Version         int64        `json:"version"`
	Status          OrderStatus  `json:"status"`
	Kind            MutationKind `json:"kind,omitempty"`
	StationTags     []string     `json:"station_tags,omitempty"`
	OwnerTerminalID string       `json:"owner_terminal_id,omitempty"`
	OriginTerminal  string       `json:"origin_terminal,omitempty"`
	IdempotencyKey  string       `json:"idempotency_key,omitempty"`
	Mutation        *Mutation    `json:"mutation,omitempty"` // Carried for the edge relay
	ExpectedVersion int64        `json:"expected_version"`
	At              time.Time    `json:"at"`
}

// FleetCommandType names an out-of-band operator command.
type FleetCommandType string

const (
	CommandForceResync  FleetCommandType = "force_resync"
	CommandRepairOutbox FleetCommandType = "repair_outbox"
	CommandKick         FleetCommandType = "kick"
)

// FleetCommand is issued by the operations console and obeyed by the
// addressed terminal's or edge server's outbox engine.
type FleetCommand struct {
	ID         string           `json:"id"`
	Type       FleetCommandType `json:"type"`
	VenueID    string           `json:"venue_id"`
	TerminalID string           `json:"terminal_id"` // Empty addresses every terminal in the venue
	IssuedBy   string           `json:"issued_by,omitempty"`
	IssuedAt   time.Time        `json:"issued_at"`
}

// Addresses reports whether the command targets the given terminal.
func (c *FleetCommand) Addresses(venueID, terminalID string) bool {
	if c.VenueID != venueID {
		return false
	}
	return c.TerminalID == "" || c.TerminalID == terminalID
}
