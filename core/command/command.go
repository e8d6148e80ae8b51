// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package command defines the instructions the deployment manager
// sends to agents.
package command

import (
	"fmt"

	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
)

// Kind identifies the variant of a Command.
type Kind string

const (
	// SetRootInstance bootstraps a new agent with the description of
	// the root instance it manages and its subtree.
	SetRootInstance Kind = "set-root-instance"

	// ChangeInstanceState asks an agent to move an instance to a new
	// status.
	ChangeInstanceState Kind = "change-instance-state"

	// RemoveInstance asks an agent to forget an instance.
	RemoveInstance Kind = "remove-instance"

	// Resynchronize asks a running agent to re-send its full state.
	Resynchronize Kind = "resynchronize"

	// ChangeBinding rebinds an external export prefix to another
	// application.
	ChangeBinding Kind = "change-binding"
)

// Command is one instruction for an agent. Only the fields relevant to
// Kind are set. Commands are never mutated once built.
type Command struct {
	Kind Kind `json:"kind"`

	// Instances holds the root instance followed by its descendants,
	// for SetRootInstance.
	Instances []instance.Description `json:"instances,omitempty"`

	// InstancePath is the target of ChangeInstanceState and
	// RemoveInstance.
	InstancePath instance.Path `json:"instance-path,omitempty"`

	// Status is the target status of ChangeInstanceState.
	Status status.Status `json:"status,omitempty"`

	// Resources holds the files the agent needs to reach Status.
	// It is never set when Status is NotDeployed.
	Resources map[string][]byte `json:"resources,omitempty"`

	// Binding is set for ChangeBinding.
	Binding *Binding `json:"binding,omitempty"`
}

// Binding describes an external export rebinding.
type Binding struct {
	ExternalExportsPrefix string   `json:"external-exports-prefix"`
	ApplicationNames      []string `json:"application-names"`
}

// NewSetRootInstance returns a bootstrap command for the given root
// subtree. The first description must be the root.
func NewSetRootInstance(subtree []instance.Description) Command {
	return Command{
		Kind:      SetRootInstance,
		Instances: subtree,
	}
}

// NewChangeInstanceState returns a command moving the instance at path
// to the target status. Resources are dropped for NotDeployed.
func NewChangeInstanceState(path instance.Path, target status.Status, resources map[string][]byte) Command {
	cmd := Command{
		Kind:         ChangeInstanceState,
		InstancePath: path,
		Status:       target,
	}
	if target != status.NotDeployed && len(resources) > 0 {
		cmd.Resources = resources
	}
	return cmd
}

// NewRemoveInstance returns a command removing the instance at path.
func NewRemoveInstance(path instance.Path) Command {
	return Command{
		Kind:         RemoveInstance,
		InstancePath: path,
	}
}

// NewResynchronize returns a resynchronize command.
func NewResynchronize() Command {
	return Command{Kind: Resynchronize}
}

// NewChangeBinding returns a command binding the given external export
// prefix to the named applications.
func NewChangeBinding(prefix string, applicationNames ...string) Command {
	return Command{
		Kind: ChangeBinding,
		Binding: &Binding{
			ExternalExportsPrefix: prefix,
			ApplicationNames:      applicationNames,
		},
	}
}

// Validate checks that the fields required by the command's kind are
// set.
func (c Command) Validate() error {
	switch c.Kind {
	case SetRootInstance:
		if len(c.Instances) == 0 {
			return errors.NotValidf("%s without instances", c.Kind)
		}
		if !c.Instances[0].Path.IsRoot() {
			return errors.NotValidf("%s for non root %q", c.Kind, c.Instances[0].Path)
		}
	case ChangeInstanceState:
		if c.InstancePath == "" {
			return errors.NotValidf("%s without instance path", c.Kind)
		}
		if !c.Status.Valid() {
			return errors.NotValidf("%s to status %q", c.Kind, c.Status)
		}
		if c.Status == status.NotDeployed && len(c.Resources) > 0 {
			return errors.NotValidf("%s to %s with resources", c.Kind, c.Status)
		}
	case RemoveInstance:
		if c.InstancePath == "" {
			return errors.NotValidf("%s without instance path", c.Kind)
		}
	case Resynchronize:
	case ChangeBinding:
		if c.Binding == nil || c.Binding.ExternalExportsPrefix == "" {
			return errors.NotValidf("%s without prefix", c.Kind)
		}
	default:
		return errors.NotValidf("command kind %q", c.Kind)
	}
	return nil
}

// String returns a short description, used in logs.
func (c Command) String() string {
	switch c.Kind {
	case SetRootInstance:
		if len(c.Instances) > 0 {
			return fmt.Sprintf("%s(%s)", c.Kind, c.Instances[0].Path)
		}
	case ChangeInstanceState:
		return fmt.Sprintf("%s(%s, %s)", c.Kind, c.InstancePath, c.Status)
	case RemoveInstance:
		return fmt.Sprintf("%s(%s)", c.Kind, c.InstancePath)
	case ChangeBinding:
		if c.Binding != nil {
			return fmt.Sprintf("%s(%s)", c.Kind, c.Binding.ExternalExportsPrefix)
		}
	}
	return string(c.Kind)
}
