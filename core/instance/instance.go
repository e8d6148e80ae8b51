// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package instance

import (
	"github.com/juju/deploymgr/core/status"
)

// Well known keys of an instance's data map.
const (
	// MachineID holds the provisioning backend's identifier of the
	// machine backing a root instance.
	MachineID = "machine-id"

	// IPAddress holds the address reported by a root instance's agent.
	IPAddress = "ip-address"

	// ApplicationName holds the name of the owning application.
	ApplicationName = "application-name"
)

// Instance is a node of an application's instance tree. Instances are
// owned by a Tree; the parent is referenced by path only.
type Instance struct {
	// Name is unique among siblings.
	Name string

	// Component references the model component this instance is
	// created from. It is opaque to the orchestrator.
	Component string

	// Status is the last known deployment status.
	Status status.Status

	// Data holds runtime attributes, see MachineID, IPAddress and
	// ApplicationName.
	Data map[string]string

	// Exports holds overridden export values.
	Exports map[string]string

	path     Path
	children []Path
}

// New returns an instance with the given name and component, in the
// NotDeployed status.
func New(name, component string) *Instance {
	return &Instance{
		Name:      name,
		Component: component,
		Status:    status.NotDeployed,
		Data:      make(map[string]string),
		Exports:   make(map[string]string),
	}
}

// Path returns the instance's path. It is empty until the instance
// has been added to a tree.
func (i *Instance) Path() Path {
	return i.path
}

// Parent returns the parent's path, or the empty path for a root.
func (i *Instance) Parent() Path {
	return i.path.Parent()
}

// IsRoot returns true if the instance has no parent.
func (i *Instance) IsRoot() bool {
	return i.path.IsRoot()
}

// MachineID returns the identifier of the machine backing the
// instance, if any.
func (i *Instance) MachineID() string {
	return i.Data[MachineID]
}

// SetData sets a data entry, creating the map when needed.
func (i *Instance) SetData(key, value string) {
	if i.Data == nil {
		i.Data = make(map[string]string)
	}
	i.Data[key] = value
}

// Description returns a detached snapshot of the instance.
func (i *Instance) Description() Description {
	return Description{
		Path:      i.path,
		Component: i.Component,
		Status:    i.Status,
		Data:      copyMap(i.Data),
		Exports:   copyMap(i.Exports),
	}
}

// Description is a value snapshot of an instance, as carried on the
// wire to an agent.
type Description struct {
	Path      Path              `json:"path"`
	Component string            `json:"component"`
	Status    status.Status     `json:"status"`
	Data      map[string]string `json:"data,omitempty"`
	Exports   map[string]string `json:"exports,omitempty"`
}

func copyMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
