// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package model

import (
	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/juju/deploymgr/core/instance"
)

// Component describes what instances of one component may contain and
// carry.
type Component struct {
	Name string `yaml:"name"`

	// Root marks components whose instances are machine backed.
	Root bool `yaml:"root,omitempty"`

	// Children names the components allowed directly underneath.
	Children []string `yaml:"children,omitempty"`

	// Exports holds default export values, overridden per instance.
	Exports map[string]string `yaml:"exports,omitempty"`

	// Resources maps a resource name to its content, handed to the
	// agent when an instance is deployed or started.
	Resources map[string]string `yaml:"resources,omitempty"`
}

// Validate ensures the component is well formed.
func (c Component) Validate() error {
	if c.Name == "" {
		return errors.NotValidf("component without name")
	}
	if _, ok := c.Resources[ExportsResource]; ok {
		return errors.NotValidf("component %q resource %q is reserved", c.Name, ExportsResource)
	}
	return nil
}

// Rules is a Checker driven by component declarations.
type Rules struct {
	components map[string]Component
	children   map[string]set.Strings
}

// NewRules returns rules over the given components. Every component
// named as a child must itself be declared.
func NewRules(components []Component) (*Rules, error) {
	r := &Rules{
		components: make(map[string]Component, len(components)),
		children:   make(map[string]set.Strings, len(components)),
	}
	for _, comp := range components {
		if err := comp.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		if _, ok := r.components[comp.Name]; ok {
			return nil, errors.AlreadyExistsf("component %q", comp.Name)
		}
		r.components[comp.Name] = comp
		r.children[comp.Name] = set.NewStrings(comp.Children...)
	}
	for name, children := range r.children {
		for _, child := range children.SortedValues() {
			if _, ok := r.components[child]; !ok {
				return nil, errors.NotValidf("component %q child %q", name, child)
			}
		}
	}
	return r, nil
}

// CanHaveChild is part of the Checker interface.
func (r *Rules) CanHaveChild(parent, child *instance.Instance) bool {
	comp, ok := r.components[child.Component]
	if !ok {
		return false
	}
	if parent == nil {
		return comp.Root
	}
	return !comp.Root && r.children[parent.Component].Contains(child.Component)
}

// Resources is part of the Checker interface.
func (r *Rules) Resources(application string, inst *instance.Instance) (map[string][]byte, error) {
	comp, ok := r.components[inst.Component]
	if !ok {
		return nil, errors.NotFoundf("component %q of %s%s", inst.Component, application, inst.Path())
	}
	result := make(map[string][]byte, len(comp.Resources)+1)
	for name, content := range comp.Resources {
		result[name] = []byte(content)
	}
	return encodeExports(result, r.Exports(inst))
}

// Exports is part of the Checker interface.
func (r *Rules) Exports(inst *instance.Instance) map[string]string {
	return mergeExports(r.components[inst.Component].Exports, inst.Exports)
}

// Validate is part of the Checker interface.
func (r *Rules) Validate(tree *instance.Tree) error {
	for _, inst := range tree.All() {
		var parent *instance.Instance
		if !inst.IsRoot() {
			parent, _ = tree.Get(inst.Parent())
		}
		if !r.CanHaveChild(parent, inst) {
			return errors.NotValidf("instance %s of component %q", inst.Path(), inst.Component)
		}
	}
	return nil
}

func encodeExports(resources map[string][]byte, exports map[string]string) (map[string][]byte, error) {
	if len(exports) == 0 {
		if len(resources) == 0 {
			return nil, nil
		}
		return resources, nil
	}
	data, err := yaml.Marshal(exports)
	if err != nil {
		return nil, errors.Annotate(err, "encoding exports")
	}
	if resources == nil {
		resources = make(map[string][]byte, 1)
	}
	resources[ExportsResource] = data
	return resources, nil
}
