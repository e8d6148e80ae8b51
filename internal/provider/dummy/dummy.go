// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package dummy implements a provisioning backend that keeps its
// machines in memory. Every machine it ever created is remembered as
// running or stopped, so tests can observe provisioning effects.
package dummy

import (
	"sync"

	"github.com/google/uuid"
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/internal/provider"
)

var logger = loggo.GetLogger("deploymgr.provider.dummy")

// Operation represents an action on the dummy backend.
type Operation interface{}

// OpCreateMachine is sent on the listening channel when a machine is
// created.
type OpCreateMachine struct {
	Machine provider.Machine
}

// OpDestroyMachine is sent on the listening channel when a machine is
// destroyed.
type OpDestroyMachine struct {
	Machine provider.Machine
}

// MachineState is the bookkeeping entry of one root instance.
type MachineState struct {
	ID      string
	Running bool
}

// Backend is an in-memory provider.Backend.
type Backend struct {
	mu       sync.Mutex
	machines map[string]MachineState
	broken   set.Strings
	ops      chan<- Operation
	creates  int
	destroys int
}

// New returns an empty dummy backend.
func New() *Backend {
	return &Backend{
		machines: make(map[string]MachineState),
		broken:   set.NewStrings(),
	}
}

// Listen closes the previously registered listener (if any), and
// registers the given channel to receive every subsequent operation.
// Subsequent operations will block until the channel is read.
func (b *Backend) Listen(c chan<- Operation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ops != nil {
		close(b.ops)
	}
	b.ops = c
}

// SetBroken makes the named methods ("CreateMachine",
// "DestroyMachine") fail until reset with no arguments.
func (b *Backend) SetBroken(methods ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = set.NewStrings(methods...)
}

func (b *Backend) checkBroken(method string) error {
	if b.broken.Contains(method) {
		return errors.Errorf("dummy.%s is broken", method)
	}
	return nil
}

// CreateMachine is part of the provider.Backend interface.
func (b *Backend) CreateMachine(m provider.Machine) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger.Infof("dummy create machine for %s%s", m.Application, m.Root)
	if err := b.checkBroken("CreateMachine"); err != nil {
		return "", err
	}
	id := "dummy-" + uuid.NewString()
	b.machines[key(m.Application, m.Root)] = MachineState{ID: id, Running: true}
	b.creates++

	m.ID = id
	b.notify(OpCreateMachine{Machine: m})
	return id, nil
}

// DestroyMachine is part of the provider.Backend interface.
func (b *Backend) DestroyMachine(m provider.Machine) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	logger.Infof("dummy destroy machine %q of %s%s", m.ID, m.Application, m.Root)
	if err := b.checkBroken("DestroyMachine"); err != nil {
		return err
	}
	k := key(m.Application, m.Root)
	state, ok := b.machines[k]
	if !ok || state.ID != m.ID {
		// Destroying an unknown machine succeeds, as it does on
		// real clouds once the machine is gone.
		logger.Debugf("machine %q unknown", m.ID)
		return nil
	}
	state.Running = false
	b.machines[k] = state
	b.destroys++

	b.notify(OpDestroyMachine{Machine: m})
	return nil
}

func (b *Backend) notify(op Operation) {
	if b.ops != nil {
		b.ops <- op
	}
}

// Machine returns the bookkeeping entry of the given root.
func (b *Backend) Machine(application string, root instance.Path) (MachineState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.machines[key(application, root)]
	return state, ok
}

// Machines returns whether each known root's machine is running,
// keyed by application name followed by root path.
func (b *Backend) Machines() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make(map[string]bool, len(b.machines))
	for k, state := range b.machines {
		result[k] = state.Running
	}
	return result
}

// CreateCount returns how many machines were created.
func (b *Backend) CreateCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates
}

// DestroyCount returns how many machines were destroyed.
func (b *Backend) DestroyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroys
}

func key(application string, root instance.Path) string {
	return application + string(root)
}
