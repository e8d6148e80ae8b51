// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package memory provides a message bus that keeps every command in
// memory. It backs the daemon's standalone mode and the tests.
package memory

import (
	"context"
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/command"
	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
)

// Message is a command delivered to an agent.
type Message struct {
	Application string
	Root        instance.Path
	Command     command.Command
}

// Transport is an in-memory messaging.Transport and messaging.Prober.
type Transport struct {
	mu          sync.Mutex
	messages    []Message
	failures    []error
	closed      bool
	closeCount  int
	unreachable set.Strings
}

// NewTransport returns a connected transport on which every agent is
// reachable.
func NewTransport() *Transport {
	return &Transport{
		unreachable: set.NewStrings(),
	}
}

// Send is part of the messaging.Transport interface.
func (t *Transport) Send(application string, root instance.Path, cmd command.Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errors.Annotate(coreerrors.DeliveryFailure, "transport closed")
	}
	if len(t.failures) > 0 {
		err := t.failures[0]
		t.failures = t.failures[1:]
		if err != nil {
			return err
		}
	}
	t.messages = append(t.messages, Message{
		Application: application,
		Root:        root,
		Command:     cmd,
	})
	return nil
}

// IsConnected is part of the messaging.Transport interface.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Close is part of the messaging.Transport interface.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.closeCount++
	return nil
}

// CloseCount returns how many times Close was called.
func (t *Transport) CloseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount
}

// SetFailures makes the next sends return the given errors in order.
// A nil entry lets the corresponding send succeed.
func (t *Transport) SetFailures(errs ...error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = errs
}

// Messages returns every message sent so far.
func (t *Transport) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Message, len(t.messages))
	copy(result, t.messages)
	return result
}

// Commands returns the commands sent to the agent of the given root.
func (t *Transport) Commands(application string, root instance.Path) []command.Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	var result []command.Command
	for _, m := range t.messages {
		if m.Application == application && m.Root == root {
			result = append(result, m.Command)
		}
	}
	return result
}

// Reset forgets every sent message.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// SetReachable changes the answer Probe gives for the given agent.
func (t *Transport) SetReachable(application string, root instance.Path, reachable bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := agentKey(application, root)
	if reachable {
		t.unreachable.Remove(key)
	} else {
		t.unreachable.Add(key)
	}
}

// Probe is part of the messaging.Prober interface.
func (t *Transport) Probe(ctx context.Context, application string, root instance.Path) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.unreachable.Contains(agentKey(application, root)) {
		return errors.Errorf("agent %s/%s did not answer", application, root)
	}
	return nil
}

func agentKey(application string, root instance.Path) string {
	return application + string(root)
}
