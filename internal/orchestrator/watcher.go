// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"sync"
	"time"

	"github.com/juju/pubsub/v2"
	"gopkg.in/tomb.v2"

	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
)

// StatusChangedTopic is the hub topic carrying StatusChange values.
const StatusChangedTopic = "deploymgr.instance.status-changed"

// StatusChange describes one instance status change.
type StatusChange struct {
	Application string
	Path        instance.Path
	From        status.Status
	To          status.Status
	At          time.Time
}

// StatusWatcher reports the status changes of one application, or of
// every application, in the order they were published.
type StatusWatcher struct {
	tomb        tomb.Tomb
	application string
	changes     chan StatusChange

	mu      sync.Mutex
	pending []StatusChange
	wake    chan struct{}
}

// WatchStatus returns a watcher of the named application's status
// changes. An empty name watches every application.
func (o *Orchestrator) WatchStatus(application string) *StatusWatcher {
	return NewStatusWatcher(o.hub, application)
}

// NewStatusWatcher returns a watcher subscribed to hub.
func NewStatusWatcher(hub *pubsub.SimpleHub, application string) *StatusWatcher {
	w := &StatusWatcher{
		application: application,
		changes:     make(chan StatusChange),
		wake:        make(chan struct{}, 1),
	}
	unsub := hub.Subscribe(StatusChangedTopic, w.onChange)
	w.tomb.Go(func() error {
		defer close(w.changes)
		defer unsub()
		return w.loop()
	})
	return w
}

// Changes returns the channel of status changes. It is closed when
// the watcher stops.
func (w *StatusWatcher) Changes() <-chan StatusChange {
	return w.changes
}

// Kill is part of the worker.Worker interface.
func (w *StatusWatcher) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *StatusWatcher) Wait() error {
	return w.tomb.Wait()
}

func (w *StatusWatcher) onChange(topic string, data interface{}) {
	change, ok := data.(StatusChange)
	if !ok {
		logger.Criticalf("programming error: topic data expected StatusChange, got %T", data)
		return
	}
	if w.application != "" && change.Application != w.application {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, change)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *StatusWatcher) loop() error {
	for {
		w.mu.Lock()
		pending := w.pending
		w.pending = nil
		w.mu.Unlock()

		for _, change := range pending {
			select {
			case <-w.tomb.Dying():
				return tomb.ErrDying
			case w.changes <- change:
			}
		}

		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case <-w.wake:
		}
	}
}
