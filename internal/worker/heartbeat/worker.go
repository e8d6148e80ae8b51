// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package heartbeat provides the worker probing the agents of deployed
// root instances and reporting which of them answered.
package heartbeat

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"gopkg.in/tomb.v2"

	"github.com/juju/deploymgr/core/logger"
	"github.com/juju/deploymgr/internal/messaging"
	"github.com/juju/deploymgr/internal/orchestrator"
)

// Targets lists the roots to probe and records the outcomes. It is
// satisfied by *orchestrator.Orchestrator.
type Targets interface {
	ProbeTargets() []orchestrator.ProbeTarget
	RecordProbe(target orchestrator.ProbeTarget, reachable bool) error
}

// Config holds configuration required to run the heartbeat worker.
type Config struct {
	Targets Targets
	Prober  messaging.Prober

	// Interval is the time between two probe rounds.
	Interval time.Duration

	// ProbeTimeout bounds the wait for one agent's answer.
	ProbeTimeout time.Duration

	Clock  clock.Clock
	Logger logger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Targets == nil {
		return errors.NotValidf("nil Targets")
	}
	if c.Prober == nil {
		return errors.NotValidf("nil Prober")
	}
	if c.Interval <= 0 {
		return errors.NotValidf("non-positive Interval")
	}
	if c.ProbeTimeout <= 0 {
		return errors.NotValidf("non-positive ProbeTimeout")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

type heartbeatWorker struct {
	tomb tomb.Tomb
	cfg  Config
}

// NewWorker returns a worker running one probe round per interval.
func NewWorker(cfg Config) (worker.Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &heartbeatWorker{cfg: cfg}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *heartbeatWorker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *heartbeatWorker) Wait() error {
	return w.tomb.Wait()
}

func (w *heartbeatWorker) loop() error {
	timer := w.cfg.Clock.NewTimer(w.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying

		case <-timer.Chan():
			w.probeAll()
			timer.Reset(w.cfg.Interval)
		}
	}
}

// probeAll probes every target in turn. No target is a normal, quiet
// round.
func (w *heartbeatWorker) probeAll() {
	ctx := w.tomb.Context(context.Background())

	targets := w.cfg.Targets.ProbeTargets()
	var unreachable int
	for _, target := range targets {
		probeCtx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
		err := w.cfg.Prober.Probe(probeCtx, target.Application, target.Root)
		cancel()

		// A probe cut short by our own death says nothing about the
		// agent.
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			unreachable++
			w.cfg.Logger.Debugf("probing %s%s: %v", target.Application, target.Root, err)
		}
		if err := w.cfg.Targets.RecordProbe(target, err == nil); errors.Is(err, errors.NotFound) {
			w.cfg.Logger.Debugf("%s%s went away while probing", target.Application, target.Root)
		} else if err != nil {
			w.cfg.Logger.Warningf("recording probe of %s%s: %v", target.Application, target.Root, err)
		}
	}
	if len(targets) > 0 {
		w.cfg.Logger.Tracef("probed %d agents, %d unreachable", len(targets), unreachable)
	}
}
