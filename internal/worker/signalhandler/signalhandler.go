// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package signalhandler provides a worker acting on process signals.
package signalhandler

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/deploymgr/core/logger"
)

// ErrShutdown is returned by a handler asking for a clean shutdown.
const ErrShutdown = errors.ConstError("shutdown requested")

// HandlerFunc acts on a received signal. A nil error keeps the worker
// watching; any other error stops it with that error.
type HandlerFunc func(os.Signal) error

// SignalWatcher is the worker passing every received signal to a
// handler.
type SignalWatcher struct {
	catacomb catacomb.Catacomb
	handler  HandlerFunc
	logger   logger.Logger
	sigCh    <-chan os.Signal
}

// NewSignalWatcher returns a worker reading sig until the handler
// fails or the worker is killed.
func NewSignalWatcher(logger logger.Logger, sig <-chan os.Signal, handler HandlerFunc) (*SignalWatcher, error) {
	if sig == nil {
		return nil, errors.NotValidf("nil signal channel")
	}
	if handler == nil {
		return nil, errors.NotValidf("nil handler")
	}
	s := &SignalWatcher{
		handler: handler,
		logger:  logger,
		sigCh:   sig,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &s.catacomb,
		Work: s.watch,
	}); err != nil {
		return nil, errors.Annotate(err, "creating catacomb plan")
	}
	return s, nil
}

// Handler maps signals to actions. Signals in shutdown stop the
// worker with ErrShutdown; others run their action. Unknown signals
// are logged and ignored.
func Handler(logger logger.Logger, shutdown []os.Signal, actions map[os.Signal]func() error) HandlerFunc {
	return func(sig os.Signal) error {
		for _, s := range shutdown {
			if s == sig {
				logger.Infof("received %v, shutting down", sig)
				return ErrShutdown
			}
		}
		action, ok := actions[sig]
		if !ok {
			logger.Debugf("ignoring %v", sig)
			return nil
		}
		logger.Infof("received %v", sig)
		if err := action(); err != nil {
			logger.Warningf("handling %v: %v", sig, err)
		}
		return nil
	}
}

// Kill is part of the worker.Worker interface.
func (s *SignalWatcher) Kill() {
	s.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (s *SignalWatcher) Wait() error {
	return s.catacomb.Wait()
}

func (s *SignalWatcher) watch() error {
	for {
		select {
		case sig, ok := <-s.sigCh:
			if !ok {
				return errors.New("signal channel closed unexpectedly")
			}
			if err := s.handler(sig); err != nil {
				return err
			}
		case <-s.catacomb.Dying():
			return s.catacomb.ErrDying()
		}
	}
}
