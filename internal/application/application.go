// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package application holds the runtime state of one managed
// application: its instance tree and, per root instance, the commands
// waiting for the root's agent to become reachable.
package application

import (
	"sort"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/instance"
)

// ManagedApplication is the runtime record of an application.
//
// It is not safe for concurrent use. The orchestrator serialises all
// access to an application under that application's lock.
type ManagedApplication struct {
	name string
	tree *instance.Tree

	// awaiting maps a root instance to the commands that could not
	// be delivered yet. A key only exists while its queue is
	// non-empty.
	awaiting map[instance.Path][]command.Command
}

// New returns a managed application over the given tree. A nil tree
// is replaced by an empty one. Every instance gets the application
// name in its data.
func New(name string, tree *instance.Tree) *ManagedApplication {
	if tree == nil {
		tree = instance.NewTree()
	}
	for _, inst := range tree.All() {
		inst.SetData(instance.ApplicationName, name)
	}
	return &ManagedApplication{
		name:     name,
		tree:     tree,
		awaiting: make(map[instance.Path][]command.Command),
	}
}

// Name returns the application name.
func (a *ManagedApplication) Name() string {
	return a.name
}

// Tree returns the application's instance tree.
func (a *ManagedApplication) Tree() *instance.Tree {
	return a.tree
}

// StoreAwaitingMessage appends cmd to the queue of the given root.
func (a *ManagedApplication) StoreAwaitingMessage(root instance.Path, cmd command.Command) {
	a.awaiting[root] = append(a.awaiting[root], cmd)
}

// RemoveAwaitingMessages detaches and returns the whole queue of the
// given root. No entry is left behind.
func (a *ManagedApplication) RemoveAwaitingMessages(root instance.Path) []command.Command {
	cmds := a.awaiting[root]
	delete(a.awaiting, root)
	return cmds
}

// RequeueAwaitingMessages puts cmds back at the head of the root's
// queue, ahead of anything queued since they were removed.
func (a *ManagedApplication) RequeueAwaitingMessages(root instance.Path, cmds []command.Command) {
	if len(cmds) == 0 {
		return
	}
	queue := make([]command.Command, 0, len(cmds)+len(a.awaiting[root]))
	queue = append(queue, cmds...)
	queue = append(queue, a.awaiting[root]...)
	a.awaiting[root] = queue
}

// AwaitingMessages returns a copy of the queue of the given root.
func (a *ManagedApplication) AwaitingMessages(root instance.Path) []command.Command {
	queue := a.awaiting[root]
	if len(queue) == 0 {
		return nil
	}
	result := make([]command.Command, len(queue))
	copy(result, queue)
	return result
}

// HasAwaitingMessages returns true if some command waits for the root.
func (a *ManagedApplication) HasAwaitingMessages(root instance.Path) bool {
	return len(a.awaiting[root]) > 0
}

// AwaitingRoots returns, sorted, the roots that have queued commands.
func (a *ManagedApplication) AwaitingRoots() []instance.Path {
	roots := make([]instance.Path, 0, len(a.awaiting))
	for root := range a.awaiting {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	return roots
}

// ClearAwaitingMessages drops every queued command.
func (a *ManagedApplication) ClearAwaitingMessages() {
	a.awaiting = make(map[instance.Path][]command.Command)
}
