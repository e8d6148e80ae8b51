// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package model answers the questions the orchestrator has about an
// application's components: which parent/child pairings are legal,
// what an agent needs to realise an instance, and whether a whole
// tree is consistent.
package model

import (
	"github.com/juju/deploymgr/core/instance"
)

// ExportsResource is the resource key carrying an instance's resolved
// exports, encoded as YAML.
const ExportsResource = "exports.yaml"

// Checker is the model collaborator consumed by the orchestrator.
type Checker interface {
	// CanHaveChild reports whether child may be placed under parent.
	// A nil parent asks whether child may be a root instance.
	CanHaveChild(parent, child *instance.Instance) bool

	// Resources returns the payloads an agent needs to move inst into
	// a deployed state.
	Resources(application string, inst *instance.Instance) (map[string][]byte, error)

	// Exports returns the resolved export variables of inst.
	Exports(inst *instance.Instance) map[string]string

	// Validate checks a whole tree after a structural change.
	Validate(tree *instance.Tree) error
}

// Permissive is a Checker accepting every tree. Instances only export
// their overridden values and need no resources.
type Permissive struct{}

// CanHaveChild is part of the Checker interface.
func (Permissive) CanHaveChild(parent, child *instance.Instance) bool {
	return true
}

// Resources is part of the Checker interface.
func (p Permissive) Resources(application string, inst *instance.Instance) (map[string][]byte, error) {
	return encodeExports(nil, p.Exports(inst))
}

// Exports is part of the Checker interface.
func (Permissive) Exports(inst *instance.Instance) map[string]string {
	return mergeExports(nil, inst.Exports)
}

// Validate is part of the Checker interface.
func (Permissive) Validate(tree *instance.Tree) error {
	return nil
}

func mergeExports(defaults, overrides map[string]string) map[string]string {
	if len(defaults) == 0 && len(overrides) == 0 {
		return nil
	}
	result := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range overrides {
		result[k] = v
	}
	return result
}
