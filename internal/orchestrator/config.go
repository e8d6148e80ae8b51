// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/juju/deploymgr/core/instance"
	corelogger "github.com/juju/deploymgr/core/logger"
	"github.com/juju/deploymgr/internal/messaging"
	"github.com/juju/deploymgr/internal/model"
)

// Provisioner creates and destroys the machines backing root
// instances. It is satisfied by *provider.Provisioner.
type Provisioner interface {
	CreateMachine(application string, root *instance.Instance) (string, error)
	DestroyMachine(application string, root *instance.Instance) error
}

// Config holds the dependencies of an Orchestrator.
type Config struct {
	// TransportFactory creates the message bus transport on first
	// use. When nil, every operation producing agent messages fails
	// with ConfigurationInvalid.
	TransportFactory messaging.TransportFactory

	Provisioner Provisioner

	// Model defaults to model.Permissive.
	Model model.Checker

	// Hub receives status changes. A private hub is created when nil.
	Hub *pubsub.SimpleHub

	// Collector is optional.
	Collector *Collector

	// Tracer receives one span per operation. Spans are dropped when
	// nil.
	Tracer trace.Tracer

	Clock  clock.Clock
	Logger corelogger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Provisioner == nil {
		return errors.NotValidf("nil Provisioner")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}
