// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package orchestrator implements the deployment orchestrator. It is
// the only mutator of the managed applications' runtime state and the
// only caller of the provisioner and the message dispatcher.
//
// Every operation on an application runs under that application's
// lock. Operations on different applications never wait for each
// other.
package orchestrator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
	"github.com/juju/deploymgr/internal/messaging"
	"github.com/juju/deploymgr/internal/model"
)

// Orchestrator is the deployment orchestrator service.
type Orchestrator struct {
	cfg    Config
	hub    *pubsub.SimpleHub
	model  model.Checker
	tracer trace.Tracer

	// locks serialises operations per application name.
	locks *kmutex.Kmutex

	mu   sync.RWMutex
	apps map[string]*application.ManagedApplication

	msgMu      sync.Mutex
	factory    messaging.TransportFactory
	dispatcher *messaging.Dispatcher
	closed     bool
}

// New returns an orchestrator with no managed application. The
// transport is created on first use.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	hub := cfg.Hub
	if hub == nil {
		hub = pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{Logger: cfg.Logger})
	}
	checker := cfg.Model
	if checker == nil {
		checker = model.Permissive{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Orchestrator{
		cfg:     cfg,
		hub:     hub,
		model:   checker,
		tracer:  tracer,
		locks:   kmutex.New(),
		apps:    make(map[string]*application.ManagedApplication),
		factory: cfg.TransportFactory,
	}, nil
}

// Hub returns the hub status changes are published on.
func (o *Orchestrator) Hub() *pubsub.SimpleHub {
	return o.hub
}

// AddApplication starts managing app. The application's tree must
// satisfy the model.
func (o *Orchestrator) AddApplication(app *application.ManagedApplication) error {
	if app == nil || app.Name() == "" {
		return errors.NotValidf("application without name")
	}
	if err := o.model.Validate(app.Tree()); err != nil {
		return errors.Annotatef(err, "application %q", app.Name())
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.apps[app.Name()]; ok {
		return errors.AlreadyExistsf("application %q", app.Name())
	}
	o.apps[app.Name()] = app
	o.cfg.Logger.Infof("managing application %q with %d instances", app.Name(), app.Tree().Len())
	return nil
}

// Application returns the named managed application.
func (o *Orchestrator) Application(name string) (*application.ManagedApplication, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	app, ok := o.apps[name]
	if !ok {
		return nil, errors.NotFoundf("application %q", name)
	}
	return app, nil
}

// Applications returns the names of the managed applications, sorted.
func (o *Orchestrator) Applications() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.apps))
	for name := range o.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveApplication stops managing the named application. It is
// refused while any of its roots is deployed.
func (o *Orchestrator) RemoveApplication(name string) error {
	return o.withApplication(name, func(app *application.ManagedApplication) error {
		for _, root := range app.Tree().Roots() {
			if root.Status != status.NotDeployed {
				return errors.Annotatef(coreerrors.UnauthorizedTransition,
					"removing application %q: root %s is %s", name, root.Path(), root.Status)
			}
		}
		o.mu.Lock()
		delete(o.apps, name)
		o.mu.Unlock()
		app.ClearAwaitingMessages()
		o.cfg.Logger.Infof("stopped managing application %q", name)
		return nil
	})
}

// withApplication runs f under the named application's lock.
func (o *Orchestrator) withApplication(name string, f func(*application.ManagedApplication) error) error {
	app, err := o.Application(name)
	if err != nil {
		return errors.Trace(err)
	}
	o.locks.Lock(name)
	defer o.locks.Unlock(name)

	// The application may have been removed, or replaced, while we
	// waited for its lock.
	if current, err := o.Application(name); err != nil || current != app {
		return errors.NotFoundf("application %q", name)
	}
	return f(app)
}

// withInstance runs f under the application's lock with the instance
// at path.
func (o *Orchestrator) withInstance(name string, path instance.Path, f func(*application.ManagedApplication, *instance.Instance) error) error {
	return o.withApplication(name, func(app *application.ManagedApplication) error {
		inst, ok := app.Tree().Get(path)
		if !ok {
			return errors.NotFoundf("instance %s in application %q", path, name)
		}
		return f(app, inst)
	})
}

// messaging returns the dispatcher, creating the transport when
// needed. It fails with ConfigurationInvalid when no transport can be
// used.
func (o *Orchestrator) messaging() (*messaging.Dispatcher, error) {
	o.msgMu.Lock()
	defer o.msgMu.Unlock()

	if o.closed {
		return nil, errors.Annotate(coreerrors.ConfigurationInvalid, "orchestrator shut down")
	}
	if o.dispatcher != nil {
		return o.dispatcher, nil
	}
	if o.factory == nil {
		return nil, errors.Annotate(coreerrors.ConfigurationInvalid, "no messaging configured")
	}
	transport, err := o.factory()
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w: %w", coreerrors.ConfigurationInvalid, err)
	}
	if transport == nil {
		return nil, errors.Annotate(coreerrors.ConfigurationInvalid, "transport factory returned nothing")
	}
	var recorder messaging.Recorder
	if o.cfg.Collector != nil {
		recorder = o.cfg.Collector
	}
	o.dispatcher = messaging.NewDispatcher(transport, recorder, o.cfg.Logger)
	return o.dispatcher, nil
}

// Reconfigure replaces the transport factory. The current transport,
// if any, is closed; the next message creates a new one.
func (o *Orchestrator) Reconfigure(factory messaging.TransportFactory) {
	o.msgMu.Lock()
	defer o.msgMu.Unlock()
	o.closeTransport()
	o.factory = factory
	o.closed = false
}

// Shutdown closes the transport and drops every queued command. It
// may be called any number of times.
func (o *Orchestrator) Shutdown() {
	o.msgMu.Lock()
	o.closeTransport()
	wasClosed := o.closed
	o.closed = true
	o.msgMu.Unlock()

	if wasClosed {
		return
	}
	for _, name := range o.Applications() {
		_ = o.withApplication(name, func(app *application.ManagedApplication) error {
			app.ClearAwaitingMessages()
			return nil
		})
	}
	o.cfg.Logger.Infof("orchestrator shut down")
}

// closeTransport must be called with msgMu held.
func (o *Orchestrator) closeTransport() {
	if o.dispatcher == nil {
		return
	}
	if err := o.dispatcher.Transport().Close(); err != nil {
		o.cfg.Logger.Warningf("closing transport: %v", err)
	}
	o.dispatcher = nil
}

// setStatus records a status change and publishes it.
func (o *Orchestrator) setStatus(app *application.ManagedApplication, inst *instance.Instance, to status.Status) {
	from := inst.Status
	if from == to {
		return
	}
	inst.Status = to
	o.cfg.Logger.Debugf("%s%s: %s -> %s", app.Name(), inst.Path(), from, to)
	if o.cfg.Collector != nil {
		o.cfg.Collector.StatusChanged(to)
	}
	o.hub.Publish(StatusChangedTopic, StatusChange{
		Application: app.Name(),
		Path:        inst.Path(),
		From:        from,
		To:          to,
		At:          o.cfg.Clock.Now(),
	})
}
