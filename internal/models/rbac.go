// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package models

// Terminal roles. These align with the Casbin policy in
// internal/authz/policy.csv.
const (
	// RoleServer takes orders and payments at the table.
	RoleServer = "server"

	// RoleKitchen reads orders and subscribes to station events.
	RoleKitchen = "kitchen"

	// RoleManager can reopen orders, void payments and run SAF operations.
	// Inherits server permissions.
	RoleManager = "manager"

	// RoleEdge is the venue edge node relaying outboxes to the cloud.
	RoleEdge = "edge"

	// RoleAdmin has full access including fleet commands.
	RoleAdmin = "admin"
)

// ValidRoles contains all valid role names for validation.
var ValidRoles = []string{RoleServer, RoleKitchen, RoleManager, RoleEdge, RoleAdmin}

// IsValidRole checks if a role name is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
