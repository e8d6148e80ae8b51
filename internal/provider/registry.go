// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package provider

import (
	"sort"
	"sync"

	"github.com/juju/errors"

	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
)

// TargetKey is the instance data key that names a root's backend
// explicitly. It takes precedence over the component mapping.
const TargetKey = "target"

// Registry is a Resolver over named backends. A root instance is
// mapped to a backend by its target data entry, then by its
// component, then to the default backend.
type Registry struct {
	mu          sync.RWMutex
	backends    map[string]Backend
	components  map[string]string
	defaultName string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends:   make(map[string]Backend),
		components: make(map[string]string),
	}
}

// Register adds a named backend.
func (r *Registry) Register(name string, backend Backend) error {
	if name == "" {
		return errors.NotValidf("empty backend name")
	}
	if backend == nil {
		return errors.NotValidf("nil backend %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; ok {
		return errors.AlreadyExistsf("backend %q", name)
	}
	r.backends[name] = backend
	return nil
}

// MapComponent sends roots of the given component to the named
// backend.
func (r *Registry) MapComponent(component, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[component] = name
}

// SetDefault names the backend used when nothing else matches.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve is part of the Resolver interface.
func (r *Registry) Resolve(application string, root *instance.Instance) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := root.Data[TargetKey]
	if name == "" {
		name = r.components[root.Component]
	}
	if name == "" {
		name = r.defaultName
	}
	if name == "" {
		return nil, errors.Annotatef(coreerrors.ProvisioningFailure,
			"no backend configured for %s%s", application, root.Path())
	}
	backend, ok := r.backends[name]
	if !ok {
		return nil, errors.Annotatef(coreerrors.ProvisioningFailure,
			"backend %q for %s%s not registered", name, application, root.Path())
	}
	return backend, nil
}
