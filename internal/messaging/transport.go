// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package messaging decides whether a command reaches an agent now or
// waits in its root's queue, and defines the message bus contracts.
package messaging

import (
	"context"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/instance"
)

// Transport hands commands to the message bus.
type Transport interface {
	// Send delivers cmd to the agent of the given root instance of
	// the named application. It fails with DeliveryFailure when the
	// command cannot be handed to the bus.
	Send(application string, root instance.Path, cmd command.Command) error

	// IsConnected reports whether the bus is currently reachable.
	IsConnected() bool

	// Close releases the transport. It is idempotent.
	Close() error
}

// TransportFactory creates the transport used by the orchestrator.
type TransportFactory func() (Transport, error)

// Prober checks whether the agent of a root instance is alive. It
// returns nil when the agent answered before ctx expired.
type Prober interface {
	Probe(ctx context.Context, application string, root instance.Path) error
}

// Recorder is told about every dispatch outcome.
type Recorder interface {
	Sent(kind command.Kind)
	Queued(kind command.Kind)
	Failed(kind command.Kind)
}

type noopRecorder struct{}

func (noopRecorder) Sent(command.Kind)   {}
func (noopRecorder) Queued(command.Kind) {}
func (noopRecorder) Failed(command.Kind) {}
