// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package provider

import (
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/logger"
)

// ProvisionerConfig holds the dependencies of a Provisioner.
type ProvisionerConfig struct {
	Resolver Resolver
	Clock    clock.Clock
	Logger   logger.Logger

	// DestroyAttempts is how many times a failed destroy is tried.
	// Destroying is idempotent on every backend, creating is not, so
	// only destroy is retried.
	DestroyAttempts int

	// DestroyDelay is the pause between destroy attempts.
	DestroyDelay time.Duration
}

// Validate ensures that the config values are valid.
func (c ProvisionerConfig) Validate() error {
	if c.Resolver == nil {
		return errors.NotValidf("nil Resolver")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if c.DestroyAttempts < 1 {
		return errors.NotValidf("destroy attempts %d", c.DestroyAttempts)
	}
	if c.DestroyDelay <= 0 {
		return errors.NotValidf("destroy delay %v", c.DestroyDelay)
	}
	return nil
}

// Provisioner creates and destroys the machines of root instances.
type Provisioner struct {
	cfg ProvisionerConfig
}

// NewProvisioner returns a provisioner using the given config.
func NewProvisioner(cfg ProvisionerConfig) (*Provisioner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Provisioner{cfg: cfg}, nil
}

// CreateMachine provisions a machine for root and returns its id.
// Backend errors are returned as ProvisioningFailure with the backend
// error kept in the chain.
func (p *Provisioner) CreateMachine(application string, root *instance.Instance) (string, error) {
	backend, err := p.cfg.Resolver.Resolve(application, root)
	if err != nil {
		return "", errors.Trace(err)
	}
	m := MachineFor(application, root)
	m.ID = ""
	id, err := backend.CreateMachine(m)
	if err != nil {
		return "", provisioningFailure(err, "creating machine for %s%s", application, root.Path())
	}
	if id == "" {
		return "", errors.Annotatef(coreerrors.ProvisioningFailure,
			"backend returned no machine id for %s%s", application, root.Path())
	}
	p.cfg.Logger.Infof("created machine %q for %s%s", id, application, root.Path())
	return id, nil
}

// DestroyMachine tears down the machine backing root.
func (p *Provisioner) DestroyMachine(application string, root *instance.Instance) error {
	backend, err := p.cfg.Resolver.Resolve(application, root)
	if err != nil {
		return errors.Trace(err)
	}
	m := MachineFor(application, root)
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			return backend.DestroyMachine(m)
		},
		Attempts: p.cfg.DestroyAttempts,
		Delay:    p.cfg.DestroyDelay,
		Clock:    p.cfg.Clock,
		NotifyFunc: func(lastErr error, attempt int) {
			p.cfg.Logger.Warningf("destroying machine %q of %s%s (attempt %d): %v",
				m.ID, application, root.Path(), attempt, lastErr)
		},
	})
	if err != nil {
		return provisioningFailure(retry.LastError(err), "destroying machine %q of %s%s", m.ID, application, root.Path())
	}
	p.cfg.Logger.Infof("destroyed machine %q of %s%s", m.ID, application, root.Path())
	return nil
}

func provisioningFailure(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %w", fmt.Sprintf(format, args...), coreerrors.ProvisioningFailure, err)
}
