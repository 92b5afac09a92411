// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

// Package services adapts components whose lifecycle is not already
// Serve(ctx) to suture.Service.
//
// Most tabline components (outbox.Engine, outbox.Relay, tasks.Queue,
// websocket.Hub, fanout.Bridge, eventbus.EmbeddedServer) implement Serve
// themselves and are added to the tree directly. The wrappers here cover
// the rest:
//
//   - HTTPServerService: ListenAndServe plus graceful Shutdown
//   - SchedulerService: Start/Stop components such as the gocron scheduler
package services
