// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package instance

import (
	"github.com/juju/errors"

	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/status"
)

// Tree stores the instances of one application keyed by path. Each
// instance owns the ordered list of its children's paths; parents are
// found by path lookup, never by pointer.
//
// A Tree is not safe for concurrent use.
type Tree struct {
	instances map[Path]*Instance
	roots     []Path
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{
		instances: make(map[Path]*Instance),
	}
}

// Add inserts inst under the instance at parent. An empty parent
// inserts a root instance. The instance's path is set on success.
func (t *Tree) Add(parent Path, inst *Instance) error {
	if inst == nil {
		return errors.NotValidf("nil instance")
	}
	if !ValidName(inst.Name) {
		return errors.Annotatef(coreerrors.ImpossibleInsertion, "invalid instance name %q", inst.Name)
	}

	var path Path
	if parent == "" {
		path = RootPath(inst.Name)
	} else {
		if _, ok := t.instances[parent]; !ok {
			return errors.Annotatef(coreerrors.ImpossibleInsertion, "parent %q not found", parent)
		}
		path = parent.Child(inst.Name)
	}
	if _, ok := t.instances[path]; ok {
		return errors.Annotatef(coreerrors.ImpossibleInsertion, "instance %q already exists", path)
	}

	inst.path = path
	inst.children = nil
	if inst.Status == "" {
		inst.Status = status.NotDeployed
	}
	t.instances[path] = inst
	if parent == "" {
		t.roots = append(t.roots, path)
	} else {
		p := t.instances[parent]
		p.children = append(p.children, path)
	}
	return nil
}

// Remove deletes the instance at path and its whole subtree. It
// returns the removed instances, top-down.
func (t *Tree) Remove(path Path) ([]*Instance, error) {
	if _, ok := t.instances[path]; !ok {
		return nil, errors.NotFoundf("instance %q", path)
	}
	removed := t.Subtree(path)
	for _, inst := range removed {
		delete(t.instances, inst.path)
	}

	parent := path.Parent()
	if parent == "" {
		t.roots = without(t.roots, path)
	} else if p, ok := t.instances[parent]; ok {
		p.children = without(p.children, path)
	}
	return removed, nil
}

// Get returns the instance at path.
func (t *Tree) Get(path Path) (*Instance, bool) {
	inst, ok := t.instances[path]
	return inst, ok
}

// RootOf returns the root instance that path descends from.
func (t *Tree) RootOf(path Path) (*Instance, bool) {
	if _, ok := t.instances[path]; !ok {
		return nil, false
	}
	return t.Get(path.Root())
}

// Roots returns the root instances, in insertion order.
func (t *Tree) Roots() []*Instance {
	result := make([]*Instance, 0, len(t.roots))
	for _, path := range t.roots {
		result = append(result, t.instances[path])
	}
	return result
}

// Children returns the direct children of the instance at path, in
// insertion order.
func (t *Tree) Children(path Path) []*Instance {
	inst, ok := t.instances[path]
	if !ok {
		return nil
	}
	result := make([]*Instance, 0, len(inst.children))
	for _, child := range inst.children {
		result = append(result, t.instances[child])
	}
	return result
}

// Descendants returns every instance below path, breadth-first, so
// that a parent always precedes its children.
func (t *Tree) Descendants(path Path) []*Instance {
	subtree := t.Subtree(path)
	if len(subtree) == 0 {
		return nil
	}
	return subtree[1:]
}

// Subtree returns the instance at path followed by its descendants,
// breadth-first.
func (t *Tree) Subtree(path Path) []*Instance {
	inst, ok := t.instances[path]
	if !ok {
		return nil
	}
	result := []*Instance{inst}
	for i := 0; i < len(result); i++ {
		for _, child := range result[i].children {
			result = append(result, t.instances[child])
		}
	}
	return result
}

// All returns every instance of the tree, root by root, each root's
// subtree breadth-first.
func (t *Tree) All() []*Instance {
	result := make([]*Instance, 0, len(t.instances))
	for _, root := range t.roots {
		result = append(result, t.Subtree(root)...)
	}
	return result
}

// Len returns the number of instances in the tree.
func (t *Tree) Len() int {
	return len(t.instances)
}

func without(paths []Path, path Path) []Path {
	result := paths[:0]
	for _, p := range paths {
		if p != path {
			result = append(result, p)
		}
	}
	return result
}
