// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package config loads Tabline's configuration.

# Configuration Sources

Sources are layered with koanf, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, ./config.yaml or /etc/tabline/config.yaml
 3. Environment variables listed in envTransformFunc

# Sections

  - server: role (cloud or edge), venue, listen address
  - logging: zerolog level and format
  - security: JWT secret, enrolled terminals, rate limit, Casbin
  - storage: BadgerDB path for the outbox, payments and SAF queue
  - ledger: lock wait, idempotency retention, reopen rate limit
  - postgres, redis: optional cloud stores
  - outbox: edge relay upstream and retry policy
  - fanout, nats: real-time notifications and the event bus
  - payment: processor adapter, breaker and store-and-forward
  - catalog, tasks, audit, scheduler

# Example

	server:
	  role: edge
	  venue_id: harbour-st
	security:
	  jwt_secret: change-me-to-32-or-more-characters
	  terminals:
	    - venue_id: harbour-st
	      terminal_id: bar-1
	      secret_hash: $2a$10$...
	      role: server
	outbox:
	  enabled: true
	  upstream_url: https://tabline.example.com

Validate returns a *ConfigError naming the offending setting.
*/
package config
