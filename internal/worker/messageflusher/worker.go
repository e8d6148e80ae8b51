// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package messageflusher provides the worker delivering the commands
// queued for agents that have become reachable.
package messageflusher

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/deploymgr/core/logger"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/orchestrator"
)

// Flusher delivers queued commands. It is satisfied by
// *orchestrator.Orchestrator.
type Flusher interface {
	FlushAwaitingMessages() (orchestrator.FlushResult, error)
}

// Config holds configuration required to run the flush worker.
type Config struct {
	Flusher Flusher

	// Hub carries status changes. A root becoming DEPLOYED_STARTED
	// triggers a flush without waiting for the next interval.
	Hub *pubsub.SimpleHub

	// Interval is the time between two flushes.
	Interval time.Duration

	Clock  clock.Clock
	Logger logger.Logger
}

// Validate ensures that the configuration is
// correctly populated for worker operation.
func (config Config) Validate() error {
	if config.Flusher == nil {
		return errors.NotValidf("nil Flusher")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Interval <= 0 {
		return errors.NotValidf("non-positive Interval")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

type flushWorker struct {
	catacomb catacomb.Catacomb
	cfg      Config
}

// NewWorker starts a new flush worker based
// on the input configuration and returns it.
func NewWorker(cfg Config) (worker.Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	w := &flushWorker{cfg: cfg}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *flushWorker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *flushWorker) Wait() error {
	return w.catacomb.Wait()
}

func (w *flushWorker) loop() error {
	watcher := orchestrator.NewStatusWatcher(w.cfg.Hub, "")
	if err := w.catacomb.Add(watcher); err != nil {
		return errors.Trace(err)
	}

	timer := w.cfg.Clock.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()

		case change, ok := <-watcher.Changes():
			if !ok {
				return errors.New("status watcher closed")
			}
			if change.Path.IsRoot() && change.To == status.DeployedStarted {
				w.cfg.Logger.Debugf("agent of %s%s started, flushing", change.Application, change.Path)
				w.flush()
			}

		case <-timer.Chan():
			w.flush()
			timer.Reset(w.cfg.Interval)
		}
	}
}

// flush never stops the worker: a failed delivery is retried on the
// next run.
func (w *flushWorker) flush() {
	result, err := w.cfg.Flusher.FlushAwaitingMessages()
	if err != nil {
		w.cfg.Logger.Warningf("flushing queued commands: %v", err)
		return
	}
	if result.Sent > 0 || result.Requeued > 0 {
		w.cfg.Logger.Infof("flushed %d queued commands, %d left queued", result.Sent, result.Requeued)
	}
}
