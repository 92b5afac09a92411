// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

/*
Package middleware provides the HTTP middleware shared by every route.

  - RequestID: accepts or generates X-Request-ID and puts it on the logging context
  - PrometheusMetrics: request count, latency and in-flight gauges keyed by chi route pattern
  - Compression: gzip for the bootstrap and order list responses

Authentication and authorization middleware live in internal/auth and
internal/authz; rate limiting and CORS come from go-chi/httprate and
go-chi/cors in internal/api.
*/
package middleware
