// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package eventbus

import "time"

// Config selects and tunes the transport.
type Config struct {
	// NATS switches from the in-process gochannel transport to NATS.
	NATS bool

	// URL of the NATS server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process nats-server and connects to it.
	Embedded bool

	Server ServerConfig

	MaxReconnects  int
	ReconnectWait  time.Duration
	CloseTimeout   time.Duration
	OutputBuffer   int64 // gochannel per-subscriber buffer
	HandlerTimeout time.Duration
}

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host       string
	Port       int
	MaxPayload int32
}

// DefaultConfig returns an in-process bus.
func DefaultConfig() Config {
	return Config{
		URL:            "nats://127.0.0.1:4222",
		Server:         ServerConfig{Host: "127.0.0.1", Port: 4222, MaxPayload: 1 << 20},
		MaxReconnects:  -1,
		ReconnectWait:  2 * time.Second,
		CloseTimeout:   10 * time.Second,
		OutputBuffer:   256,
		HandlerTimeout: 5 * time.Second,
	}
}
