// Tabline - Point-of-Sale Order Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tabline

package outbox

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/tabline/internal/eventbus"
	"github.com/tomtom215/tabline/internal/models"
)

// Source delivers bus messages for a topic. *eventbus.Bus satisfies it.
type Source interface {
	Handle(ctx context.Context, topic string, fn eventbus.HandlerFunc) error
}

// CommandListener feeds fleet commands from the bus into an Engine.
type CommandListener struct {
	source Source
	engine *Engine
}

// NewCommandListener creates a listener for engine.
func NewCommandListener(source Source, engine *Engine) *CommandListener {
	return &CommandListener{source: source, engine: engine}
}

// Serve implements suture.Service.
func (l *CommandListener) Serve(ctx context.Context) error {
	return l.source.Handle(ctx, models.TopicFleetCommands, func(ctx context.Context, msg *message.Message) error {
		var cmd models.FleetCommand
		if err := eventbus.Decode(msg, &cmd); err != nil {
			return err
		}
		return l.engine.HandleCommand(ctx, &cmd)
	})
}

// String implements fmt.Stringer for supervisor logging.
func (l *CommandListener) String() string {
	return "outbox-commands"
}
