// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package docs registers the OpenAPI 2.0 document served at /swagger/.
//
// The layout follows swag's generated output so `swag init -g
// cmd/server/docs.go -o docs` can refresh it from the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "AGPL-3.0-or-later",
            "url": "https://www.gnu.org/licenses/agpl-3.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/admin/backups": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "List store snapshots",
                "description": "Lists local store snapshots, newest first.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Snapshots",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "404": {
                        "description": "Backups disabled",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Take a store snapshot",
                "description": "Takes a manual snapshot of the local store.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "Snapshot taken",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "404": {
                        "description": "Backups disabled",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "503": {
                        "description": "A snapshot is already running",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "Notes",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.CreateBackupRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/backups/{id}/validate": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Validate a snapshot",
                "description": "Re-hashes a snapshot against its recorded checksum.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Validation result",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.BackupValidationResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "No such snapshot",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Snapshot ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/fleet/commands": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Issue a fleet command",
                "description": "Publishes force_resync, repair_outbox or kick to a terminal or the whole venue.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "202": {
                        "description": "Command published",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.FleetCommand"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "Command",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.FleetCommandRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/audit": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "Audit events",
                "description": "Queries the audit log.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Audit events",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/auth/terminal": {
            "post": {
                "tags": [
                    "Auth"
                ],
                "summary": "Terminal login",
                "description": "Exchanges a terminal's credentials for a bearer token.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Token issued",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.TerminalLoginResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "401": {
                        "description": "Invalid credentials",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "429": {
                        "description": "Too many login attempts",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "Terminal credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/models.TerminalLoginRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ]
            }
        },
        "/bootstrap": {
            "get": {
                "tags": [
                    "Sync"
                ],
                "summary": "Venue snapshot",
                "description": "Returns every open order of the caller's venue and the cursor to pass to /delta.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Snapshot",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.Snapshot"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/delta": {
            "get": {
                "tags": [
                    "Sync"
                ],
                "summary": "Changes since a cursor",
                "description": "Returns orders changed after the cursor. Orders that left the open set are listed in removed.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Delta",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.Delta"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "422": {
                        "description": "Invalid cursor",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Cursor from the last snapshot or delta",
                        "name": "since",
                        "in": "query",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/health": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Service health",
                "description": "Reports role, uptime, processor availability and SAF depth.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Health status",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.HealthStatus"
                                        }
                                    }
                                }
                            ]
                        }
                    }
                }
            }
        },
        "/health/live": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Liveness",
                "description": "Answers 200 while the process is serving.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Alive",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                }
            }
        },
        "/health/ready": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Readiness",
                "description": "Checks every registered dependency. Answers 503 when one is down.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Ready",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.HealthStatus"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "503": {
                        "description": "A dependency is unavailable",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                }
            }
        },
        "/orders": {
            "get": {
                "tags": [
                    "Orders"
                ],
                "summary": "List open orders",
                "description": "Returns the open orders of the caller's venue.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Open orders",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/models.Order"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Orders"
                ],
                "summary": "Create an order",
                "description": "Creates a draft order at version 1. Repeating the idempotency key returns the original order.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Replayed create",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/ledger.Result"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "201": {
                        "description": "Created",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/ledger.Result"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "409": {
                        "description": "Order id already used",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "Order to create",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.CreateOrderRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/orders/{id}": {
            "get": {
                "tags": [
                    "Orders"
                ],
                "summary": "Get an order",
                "description": "Returns one order of the caller's venue.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Order",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.Order"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "No such order",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Order ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/orders/{id}/mutations": {
            "post": {
                "tags": [
                    "Orders"
                ],
                "summary": "Apply a mutation",
                "description": "Applies one mutation at the expected version.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Applied or replayed",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/ledger.Result"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "409": {
                        "description": "Version conflict; details.current_version is the version to rebase onto",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "503": {
                        "description": "Order busy; retry after the Retry-After delay",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Order ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Mutation",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.MutationRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/orders/{id}/payments": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Payments of an order",
                "description": "Lists the payment records for one order.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Payment records",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "type": "array",
                                            "items": {
                                                "$ref": "#/definitions/payment.Record"
                                            }
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Order ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/orders/{id}/reopen": {
            "post": {
                "tags": [
                    "Orders"
                ],
                "summary": "Reopen an order",
                "description": "Moves a closed, voided or cancelled order back to sent. Rate limited per order.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Reopened",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/ledger.Result"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "409": {
                        "description": "Version conflict",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "422": {
                        "description": "Order is not terminal",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "503": {
                        "description": "Reopened too recently",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Order ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Reopen request",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.ReopenOrderRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/outbox": {
            "post": {
                "tags": [
                    "Sync"
                ],
                "summary": "Submit an outbox batch",
                "description": "Applies queued mutations in order. The answer is 200 with one verdict per entry; later entries for an order are skipped once one fails. Settle, payment_void and reopen entries are accepted only from an edge.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Per-entry results",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/models.OutboxResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "422": {
                        "description": "Malformed batch",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "429": {
                        "description": "Rate limited",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "Queued mutations",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/models.OutboxBatch"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/outbox/dead-letters": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "List dead letters",
                "description": "Lists outbox entries that exhausted their retries or were rejected.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Dead letters",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/outbox/dead-letters/{id}/requeue": {
            "post": {
                "tags": [
                    "Admin"
                ],
                "summary": "Requeue a dead letter",
                "description": "Moves a dead letter back to the tail of its order's queue.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Requeued",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "404": {
                        "description": "No such dead letter",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Entry ID",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/outbox/status": {
            "get": {
                "tags": [
                    "Admin"
                ],
                "summary": "Outbox status",
                "description": "Reports the edge outbox depth and sync cursor.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Outbox status",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/api.OutboxStatusResponse"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "No outbox on this node",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/authorize": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Authorize a payment",
                "description": "Holds an amount with the processor, or stores it forward when offline is allowed.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "201": {
                        "description": "Authorized",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/payment.Record"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "503": {
                        "description": "Processor unavailable",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "Authorization",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.AuthorizePaymentRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/{ref}": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Get a payment",
                "description": "Returns one payment record.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Payment record",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/payment.Record"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "404": {
                        "description": "No such payment",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Payment reference",
                        "name": "ref",
                        "in": "path",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/{ref}/capture": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Capture a payment",
                "description": "Captures against an authorization and applies the payment line to the order in one write.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Captured",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/payment.Record"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "409": {
                        "description": "Version conflict",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "422": {
                        "description": "Validation failed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "503": {
                        "description": "Processor or order store unavailable; the capture was reversed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Payment reference",
                        "name": "ref",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Capture",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.CapturePaymentRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/{ref}/reconcile": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Reconcile a payment",
                "description": "Re-reads the processor state and repairs the order if they disagree.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Reconciled",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/payment.Record"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Payment reference",
                        "name": "ref",
                        "in": "path",
                        "required": true
                    }
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/payments/{ref}/void": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Void a payment",
                "description": "Voids an authorization or capture and removes it from the order.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Voided",
                        "schema": {
                            "allOf": [
                                {
                                    "$ref": "#/definitions/models.APIResponse"
                                },
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {
                                            "$ref": "#/definitions/payment.Record"
                                        }
                                    }
                                }
                            ]
                        }
                    },
                    "422": {
                        "description": "Payment cannot be voided",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "Payment reference",
                        "name": "ref",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "Void",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/api.VoidPaymentRequest"
                        }
                    }
                ],
                "consumes": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/saf": {
            "get": {
                "tags": [
                    "Payments"
                ],
                "summary": "Store-and-forward status",
                "description": "Reports stored offline authorizations.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "SAF status",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/saf/close": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Close the batch",
                "description": "Closes the processor batch once the SAF queue is empty.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Batch closed",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "409": {
                        "description": "SAF queue not empty",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/saf/forward": {
            "post": {
                "tags": [
                    "Payments"
                ],
                "summary": "Forward stored payments",
                "description": "Submits stored offline authorizations to the processor.",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "Forward result",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "401": {
                        "description": "Missing or invalid token",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    },
                    "403": {
                        "description": "Role may not perform this action",
                        "schema": {
                            "$ref": "#/definitions/models.APIResponse"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "api.AuthorizePaymentRequest": {
            "type": "object",
            "required": [
                "order_id",
                "amount",
                "idempotency_key"
            ],
            "properties": {
                "order_id": {
                    "type": "string"
                },
                "amount": {
                    "type": "integer"
                },
                "idempotency_key": {
                    "type": "string"
                },
                "allow_offline": {
                    "type": "boolean"
                }
            }
        },
        "api.BackupValidationResponse": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "valid": {
                    "type": "boolean"
                },
                "error": {
                    "type": "string"
                }
            }
        },
        "api.CapturePaymentRequest": {
            "type": "object",
            "required": [
                "amount",
                "idempotency_key"
            ],
            "properties": {
                "amount": {
                    "type": "integer"
                },
                "expected_version": {
                    "type": "integer"
                },
                "idempotency_key": {
                    "type": "string"
                }
            }
        },
        "api.CreateBackupRequest": {
            "type": "object",
            "properties": {
                "notes": {
                    "type": "string"
                }
            }
        },
        "api.CreateOrderRequest": {
            "type": "object",
            "required": [
                "idempotency_key"
            ],
            "properties": {
                "order_id": {
                    "type": "string"
                },
                "idempotency_key": {
                    "type": "string"
                },
                "table_label": {
                    "type": "string"
                }
            }
        },
        "api.FleetCommandRequest": {
            "type": "object",
            "required": [
                "type"
            ],
            "properties": {
                "type": {
                    "type": "string",
                    "enum": [
                        "force_resync",
                        "repair_outbox",
                        "kick"
                    ]
                },
                "terminal_id": {
                    "type": "string"
                }
            }
        },
        "api.HealthStatus": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                },
                "venue_id": {
                    "type": "string"
                },
                "uptime_seconds": {
                    "type": "number"
                },
                "components": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                },
                "processor_available": {
                    "type": "boolean"
                },
                "saf_depth": {
                    "type": "integer"
                }
            }
        },
        "api.MutationRequest": {
            "type": "object",
            "required": [
                "idempotency_key",
                "mutation"
            ],
            "properties": {
                "expected_version": {
                    "type": "integer"
                },
                "idempotency_key": {
                    "type": "string"
                },
                "mutation": {
                    "$ref": "#/definitions/models.Mutation"
                }
            }
        },
        "api.OutboxStatusResponse": {
            "type": "object",
            "properties": {
                "queued": {
                    "type": "integer"
                },
                "dead": {
                    "type": "integer"
                },
                "cursor": {
                    "type": "integer"
                }
            }
        },
        "api.ReopenOrderRequest": {
            "type": "object",
            "required": [
                "expected_version",
                "idempotency_key",
                "reason"
            ],
            "properties": {
                "expected_version": {
                    "type": "integer"
                },
                "idempotency_key": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                }
            }
        },
        "api.VoidPaymentRequest": {
            "type": "object",
            "required": [
                "idempotency_key"
            ],
            "properties": {
                "idempotency_key": {
                    "type": "string"
                }
            }
        },
        "ledger.Result": {
            "type": "object",
            "properties": {
                "order": {
                    "$ref": "#/definitions/models.Order"
                },
                "version": {
                    "type": "integer"
                },
                "replayed": {
                    "type": "boolean"
                }
            }
        },
        "models.APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string",
                    "description": "VERSION_CONFLICT, VALIDATION_ERROR, BAD_REQUEST, BUSY, NOT_SAVED, FATAL_IRRECONCILABLE, OFFLINE_PENDING, NOT_FOUND, FORBIDDEN, UNAUTHORIZED, INTERNAL_ERROR"
                },
                "message": {
                    "type": "string"
                },
                "details": {
                    "type": "object",
                    "additionalProperties": true
                }
            }
        },
        "models.APIResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "description": "success or error"
                },
                "data": {
                    "type": "object"
                },
                "metadata": {
                    "$ref": "#/definitions/models.Metadata"
                },
                "error": {
                    "$ref": "#/definitions/models.APIError"
                }
            }
        },
        "models.Delta": {
            "type": "object",
            "properties": {
                "venue_id": {
                    "type": "string"
                },
                "orders": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.Order"
                    }
                },
                "removed": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "cursor": {
                    "type": "integer"
                }
            }
        },
        "models.FleetCommand": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "type": {
                    "type": "string"
                },
                "venue_id": {
                    "type": "string"
                },
                "terminal_id": {
                    "type": "string"
                },
                "issued_by": {
                    "type": "string"
                },
                "issued_at": {
                    "type": "string"
                }
            }
        },
        "models.Metadata": {
            "type": "object",
            "properties": {
                "timestamp": {
                    "type": "string"
                },
                "request_id": {
                    "type": "string"
                }
            }
        },
        "models.Mutation": {
            "type": "object",
            "required": [
                "kind"
            ],
            "properties": {
                "kind": {
                    "type": "string",
                    "enum": [
                        "create",
                        "add_item",
                        "remove_item",
                        "set_quantity",
                        "add_modifier",
                        "remove_modifier",
                        "send",
                        "split",
                        "void",
                        "cancel",
                        "close",
                        "reopen",
                        "settle",
                        "payment_void"
                    ]
                },
                "item_id": {
                    "type": "string"
                },
                "modifier_id": {
                    "type": "string"
                },
                "sku": {
                    "type": "string"
                },
                "quantity": {
                    "type": "integer"
                },
                "note": {
                    "type": "string"
                },
                "checks": {
                    "type": "integer"
                },
                "table_label": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "reference": {
                    "type": "string",
                    "description": "Payment reference of a relayed payment_void"
                },
                "payment": {
                    "$ref": "#/definitions/models.PaymentLine"
                }
            }
        },
        "models.Order": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "venue_id": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "draft",
                        "sent",
                        "split",
                        "partially_paid",
                        "paid",
                        "closed",
                        "voided",
                        "cancelled"
                    ]
                },
                "version": {
                    "type": "integer"
                },
                "totals": {
                    "$ref": "#/definitions/models.Totals"
                },
                "owner_terminal_id": {
                    "type": "string"
                },
                "table_label": {
                    "type": "string"
                },
                "checks": {
                    "type": "integer"
                },
                "items": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.OrderItem"
                    }
                },
                "payments": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.PaymentLine"
                    }
                },
                "reopen_count": {
                    "type": "integer"
                },
                "change_seq": {
                    "type": "integer"
                },
                "created_at": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                },
                "closed_at": {
                    "type": "string"
                }
            }
        },
        "models.OrderItem": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "sku": {
                    "type": "string"
                },
                "name": {
                    "type": "string"
                },
                "quantity": {
                    "type": "integer"
                },
                "unit_price": {
                    "type": "integer"
                },
                "station_tag": {
                    "type": "string"
                },
                "note": {
                    "type": "string"
                },
                "added_at": {
                    "type": "string"
                },
                "sent_at": {
                    "type": "string"
                }
            }
        },
        "models.OutboxBatch": {
            "type": "object",
            "required": [
                "terminal_id",
                "entries"
            ],
            "properties": {
                "terminal_id": {
                    "type": "string"
                },
                "entries": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.OutboxSubmission"
                    }
                }
            }
        },
        "models.OutboxResponse": {
            "type": "object",
            "properties": {
                "results": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.SubmissionResult"
                    }
                }
            }
        },
        "models.OutboxSubmission": {
            "type": "object",
            "required": [
                "entry_id",
                "order_id",
                "idempotency_key",
                "mutation"
            ],
            "properties": {
                "entry_id": {
                    "type": "string"
                },
                "order_id": {
                    "type": "string"
                },
                "sequence": {
                    "type": "integer"
                },
                "expected_version": {
                    "type": "integer"
                },
                "idempotency_key": {
                    "type": "string"
                },
                "mutation": {
                    "$ref": "#/definitions/models.Mutation"
                }
            }
        },
        "models.PaymentLine": {
            "type": "object",
            "properties": {
                "reference": {
                    "type": "string"
                },
                "amount": {
                    "type": "integer",
                    "description": "Minor units"
                },
                "state": {
                    "type": "string",
                    "description": "captured or voided"
                },
                "offline": {
                    "type": "boolean"
                },
                "captured_at": {
                    "type": "string"
                },
                "voided_at": {
                    "type": "string"
                }
            }
        },
        "models.Snapshot": {
            "type": "object",
            "properties": {
                "venue_id": {
                    "type": "string"
                },
                "orders": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/models.Order"
                    }
                },
                "cursor": {
                    "type": "integer"
                },
                "taken_at": {
                    "type": "string"
                }
            }
        },
        "models.SubmissionResult": {
            "type": "object",
            "properties": {
                "entry_id": {
                    "type": "string"
                },
                "status": {
                    "type": "string",
                    "enum": [
                        "confirmed",
                        "conflict",
                        "rejected",
                        "retry",
                        "fatal",
                        "skipped"
                    ]
                },
                "replayed": {
                    "type": "boolean"
                },
                "order": {
                    "$ref": "#/definitions/models.Order"
                },
                "current_version": {
                    "type": "integer"
                },
                "error": {
                    "type": "string"
                }
            }
        },
        "models.TerminalLoginRequest": {
            "type": "object",
            "required": [
                "venue_id",
                "terminal_id",
                "secret"
            ],
            "properties": {
                "venue_id": {
                    "type": "string"
                },
                "terminal_id": {
                    "type": "string"
                },
                "employee_id": {
                    "type": "string"
                },
                "secret": {
                    "type": "string"
                }
            }
        },
        "models.TerminalLoginResponse": {
            "type": "object",
            "properties": {
                "token": {
                    "type": "string"
                },
                "expires_at": {
                    "type": "string"
                },
                "venue_id": {
                    "type": "string"
                },
                "terminal_id": {
                    "type": "string"
                },
                "role": {
                    "type": "string"
                }
            }
        },
        "models.Totals": {
            "type": "object",
            "properties": {
                "subtotal": {
                    "type": "integer"
                },
                "modifier_total": {
                    "type": "integer"
                },
                "total": {
                    "type": "integer"
                },
                "paid": {
                    "type": "integer"
                },
                "balance_due": {
                    "type": "integer"
                },
                "item_count": {
                    "type": "integer"
                }
            }
        },
        "payment.Record": {
            "type": "object",
            "properties": {
                "reference": {
                    "type": "string"
                },
                "processor_reference": {
                    "type": "string"
                },
                "order_id": {
                    "type": "string"
                },
                "venue_id": {
                    "type": "string"
                },
                "terminal_id": {
                    "type": "string"
                },
                "requested": {
                    "type": "integer"
                },
                "approved": {
                    "type": "integer"
                },
                "captured": {
                    "type": "integer"
                },
                "state": {
                    "type": "string",
                    "enum": [
                        "none",
                        "authorized",
                        "partial_authorized",
                        "captured",
                        "settled",
                        "voided",
                        "stored_offline",
                        "failed"
                    ]
                },
                "offline": {
                    "type": "boolean"
                },
                "pending_ledger_void": {
                    "type": "boolean"
                },
                "irreconcilable": {
                    "type": "boolean"
                },
                "created_at": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Terminal token from /auth/terminal, sent as \"Bearer <token>\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Tabline API",
	Description:      "Order ledger, payment and outbox sync API for venue terminals and edge servers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
