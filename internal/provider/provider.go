// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package provider resolves the provisioning backend of a root
// instance and drives machine creation and destruction through it.
package provider

import (
	"github.com/juju/deploymgr/core/instance"
)

// Machine identifies the machine backing a root instance.
type Machine struct {
	// Application is the owning application's name.
	Application string

	// Root is the path of the root instance.
	Root instance.Path

	// Component is the root instance's component.
	Component string

	// ID is the backend's identifier of the machine. It is empty
	// when asking for a new machine.
	ID string
}

// Backend creates and destroys machines. Errors are backend specific.
type Backend interface {
	// CreateMachine asks for a new machine and returns its identifier.
	CreateMachine(m Machine) (string, error)

	// DestroyMachine tears down the machine with m.ID.
	DestroyMachine(m Machine) error
}

// Resolver finds the backend responsible for a root instance.
type Resolver interface {
	Resolve(application string, root *instance.Instance) (Backend, error)
}

// MachineFor returns the machine description of a root instance.
func MachineFor(application string, root *instance.Instance) Machine {
	return Machine{
		Application: application,
		Root:        root.Path(),
		Component:   root.Component,
		ID:          root.MachineID(),
	}
}
