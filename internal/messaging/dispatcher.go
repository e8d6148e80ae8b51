// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package messaging

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/command"
	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/logger"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
)

// Outcome is the result of a dispatch decision.
type Outcome string

const (
	// Sent means the command was handed to the transport.
	Sent Outcome = "sent"
	// Queued means the command waits in the root's queue.
	Queued Outcome = "queued"
	// Dropped means an immediate send failed. The command is lost.
	Dropped Outcome = "dropped"
)

// Dispatcher is the single place deciding between an immediate send
// and queuing.
type Dispatcher struct {
	transport Transport
	recorder  Recorder
	logger    logger.Logger
}

// NewDispatcher returns a dispatcher over the given transport. The
// recorder may be nil.
func NewDispatcher(transport Transport, recorder Recorder, logger logger.Logger) *Dispatcher {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Dispatcher{
		transport: transport,
		recorder:  recorder,
		logger:    logger,
	}
}

// Transport returns the dispatcher's transport.
func (d *Dispatcher) Transport() Transport {
	return d.transport
}

// Dispatch sends cmd immediately when root is DeployedStarted and
// queues it under root otherwise. A failed immediate send is logged
// and swallowed; it is neither retried nor queued.
func (d *Dispatcher) Dispatch(app *application.ManagedApplication, root *instance.Instance, cmd command.Command) Outcome {
	if root.Status != status.DeployedStarted {
		d.logger.Debugf("queuing %s for %s/%s (%s)", cmd, app.Name(), root.Path(), root.Status)
		app.StoreAwaitingMessage(root.Path(), cmd)
		d.recorder.Queued(cmd.Kind)
		return Queued
	}
	if err := d.Send(app.Name(), root.Path(), cmd); err != nil {
		d.logger.Warningf("%v", err)
		return Dropped
	}
	return Sent
}

// Send hands cmd to the transport and surfaces any failure as a
// DeliveryFailure.
func (d *Dispatcher) Send(appName string, root instance.Path, cmd command.Command) error {
	err := d.transport.Send(appName, root, cmd)
	if err == nil {
		d.logger.Tracef("sent %s to %s/%s", cmd, appName, root)
		d.recorder.Sent(cmd.Kind)
		return nil
	}
	d.recorder.Failed(cmd.Kind)
	if errors.Is(err, coreerrors.DeliveryFailure) {
		return errors.Annotatef(err, "sending %s to %s/%s", cmd, appName, root)
	}
	return fmt.Errorf("sending %s to %s/%s: %w: %w", cmd, appName, root, coreerrors.DeliveryFailure, err)
}
