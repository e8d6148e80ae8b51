// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"

	"github.com/juju/deploymgr/internal/application"
	"github.com/juju/deploymgr/internal/config"
	"github.com/juju/deploymgr/internal/journal"
	"github.com/juju/deploymgr/internal/messaging"
	"github.com/juju/deploymgr/internal/messaging/memory"
	"github.com/juju/deploymgr/internal/messaging/natsbus"
	"github.com/juju/deploymgr/internal/model"
	"github.com/juju/deploymgr/internal/orchestrator"
	"github.com/juju/deploymgr/internal/provider"
	"github.com/juju/deploymgr/internal/provider/dummy"
	"github.com/juju/deploymgr/internal/tracing"
	"github.com/juju/deploymgr/internal/worker/heartbeat"
	"github.com/juju/deploymgr/internal/worker/messageflusher"
	"github.com/juju/deploymgr/internal/worker/signalhandler"
)

// transport is what the daemon needs from the configured bus.
type transport interface {
	messaging.Transport
	messaging.Prober
}

// daemon owns the orchestrator and every worker serving it.
type daemon struct {
	catacomb catacomb.Catacomb

	orchestrator *orchestrator.Orchestrator
	transport    transport
	tracer       *tracing.Tracer
	backends     map[string]*dummy.Backend
	registry     *prometheus.Registry
}

// newDaemon starts the daemon. Signals, when not nil, are handled
// until the daemon stops.
func newDaemon(cfg config.Config, clk clock.Clock, signals <-chan os.Signal) (_ *daemon, err error) {
	d := &daemon{
		backends: make(map[string]*dummy.Backend),
		registry: prometheus.NewRegistry(),
	}

	resolver, err := d.newRegistry(cfg.Provisioning)
	if err != nil {
		return nil, errors.Trace(err)
	}
	provisioner, err := provider.NewProvisioner(provider.ProvisionerConfig{
		Resolver:        resolver,
		Clock:           clk,
		Logger:          loggo.GetLogger("deploymgr.provider"),
		DestroyAttempts: cfg.Provisioning.DestroyAttempts,
		DestroyDelay:    cfg.Provisioning.DestroyDelay,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	var checker model.Checker = model.Permissive{}
	if len(cfg.Components) > 0 {
		if checker, err = model.NewRules(cfg.Components); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if d.transport, err = dialTransport(cfg.Transport); err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err != nil {
			_ = d.transport.Close()
		}
	}()

	collector := orchestrator.NewMetricsCollector()
	for _, c := range []prometheus.Collector{
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := d.registry.Register(c); err != nil {
			return nil, errors.Trace(err)
		}
	}

	var tracer trace.Tracer
	if cfg.Tracing.Exporter != "" {
		hostname, _ := os.Hostname()
		d.tracer, err = tracing.NewTracerWorker(context.Background(), tracing.Config{
			Exporter:          cfg.Tracing.Exporter,
			Endpoint:          cfg.Tracing.Endpoint,
			Insecure:          cfg.Tracing.Insecure,
			ServiceName:       "deploymgr",
			ServiceInstanceID: hostname,
			Logger:            loggo.GetLogger("deploymgr.tracing"),
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		defer func() {
			if err != nil {
				_ = worker.Stop(d.tracer)
			}
		}()
		tracer = d.tracer.Tracer()
	}

	hub := pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: loggo.GetLogger("deploymgr.hub"),
	})
	d.orchestrator, err = orchestrator.New(orchestrator.Config{
		TransportFactory: func() (messaging.Transport, error) {
			return d.transport, nil
		},
		Provisioner: provisioner,
		Model:       checker,
		Hub:         hub,
		Collector:   collector,
		Tracer:      tracer,
		Clock:       clk,
		Logger:      loggo.GetLogger("deploymgr.orchestrator"),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	workers, err := d.newWorkers(cfg, hub, clk, signals)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if d.tracer != nil {
		workers = append(workers, d.tracer)
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &d.catacomb,
		Work: d.loop,
		Init: workers,
	}); err != nil {
		for _, w := range workers {
			_ = worker.Stop(w)
		}
		return nil, errors.Trace(err)
	}

	// The workers are running, so a load failure from here on is
	// only logged.
	for _, app := range cfg.Applications {
		if err := d.load(app); err != nil {
			logger.Errorf("loading application %q: %v", app.Name, err)
		}
	}
	return d, nil
}

func (d *daemon) newRegistry(cfg config.Provisioning) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for name := range cfg.Backends {
		backend := dummy.New()
		if err := registry.Register(name, backend); err != nil {
			return nil, errors.Trace(err)
		}
		d.backends[name] = backend
	}
	for component, name := range cfg.Components {
		registry.MapComponent(component, name)
	}
	registry.SetDefault(cfg.Default)
	return registry, nil
}

func dialTransport(cfg config.Transport) (transport, error) {
	switch cfg.Kind {
	case config.TransportNATS:
		hostname, _ := os.Hostname()
		t, err := natsbus.Dial(natsbus.Config{
			URL:           cfg.URL,
			Prefix:        cfg.Prefix,
			Name:          "dmd-" + hostname,
			ReconnectWait: cfg.ReconnectWait,
			Logger:        loggo.GetLogger("deploymgr.messaging.nats"),
		})
		if err != nil {
			return nil, errors.Trace(err)
		}
		return t, nil
	case config.TransportMemory:
		logger.Warningf("using the in-memory transport, no agent will receive commands")
		return memory.NewTransport(), nil
	}
	return nil, errors.NotValidf("transport kind %q", cfg.Kind)
}

func (d *daemon) newWorkers(cfg config.Config, hub *pubsub.SimpleHub, clk clock.Clock, signals <-chan os.Signal) (_ []worker.Worker, err error) {
	var workers []worker.Worker
	defer func() {
		if err != nil {
			for _, w := range workers {
				_ = worker.Stop(w)
			}
		}
	}()

	if signals != nil {
		signalLogger := loggo.GetLogger("deploymgr.worker.signalhandler")
		handler := signalhandler.Handler(signalLogger,
			[]os.Signal{syscall.SIGINT, syscall.SIGTERM},
			map[os.Signal]func() error{syscall.SIGHUP: d.resynchronize},
		)
		watcher, err := signalhandler.NewSignalWatcher(signalLogger, signals, handler)
		if err != nil {
			return nil, errors.Trace(err)
		}
		workers = append(workers, watcher)
	}

	flusher, err := messageflusher.NewWorker(messageflusher.Config{
		Flusher:  d.orchestrator,
		Hub:      hub,
		Interval: cfg.FlushInterval,
		Clock:    clk,
		Logger:   loggo.GetLogger("deploymgr.worker.messageflusher"),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	workers = append(workers, flusher)

	prober, err := heartbeat.NewWorker(heartbeat.Config{
		Targets:      d.orchestrator,
		Prober:       d.transport,
		Interval:     cfg.HeartbeatInterval,
		ProbeTimeout: cfg.ProbeTimeout,
		Clock:        clk,
		Logger:       loggo.GetLogger("deploymgr.worker.heartbeat"),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	workers = append(workers, prober)

	if nt, ok := d.transport.(*natsbus.Transport); ok {
		listener, err := natsbus.NewAgentListener(nt, d.orchestrator, loggo.GetLogger("deploymgr.messaging.nats"))
		if err != nil {
			return nil, errors.Trace(err)
		}
		workers = append(workers, listener)
	}

	if cfg.Journal.Path != "" {
		j, err := openJournal(cfg.Journal, hub, clk)
		if err != nil {
			return nil, errors.Trace(err)
		}
		workers = append(workers, j)
	}

	if cfg.Metrics.Address != "" {
		server, err := newMetricsServer(cfg.Metrics.Address, d.registry, loggo.GetLogger("deploymgr.metrics"))
		if err != nil {
			return nil, errors.Trace(err)
		}
		workers = append(workers, server)
	}
	return workers, nil
}

func openJournal(cfg config.Journal, hub *pubsub.SimpleHub, clk clock.Clock) (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, errors.Trace(err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Annotate(err, "opening journal")
	}
	j, err := journal.New(journal.Config{
		Hub:           hub,
		Writer:        f,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Clock:         clk,
		Logger:        loggo.GetLogger("deploymgr.journal"),
	})
	if err != nil {
		_ = f.Close()
		return nil, errors.Trace(err)
	}
	return j, nil
}

// load adds the application and, when asked to, deploys it.
func (d *daemon) load(cfg config.Application) error {
	tree, err := cfg.Tree()
	if err != nil {
		return errors.Trace(err)
	}
	if err := d.orchestrator.AddApplication(application.New(cfg.Name, tree)); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("loaded application %q with %d instances", cfg.Name, tree.Len())
	if !cfg.Deploy {
		return nil
	}
	return errors.Annotate(d.orchestrator.DeployAndStartAll(cfg.Name, ""), "deploying")
}

// resynchronize asks the agents of every application to send their
// state again.
func (d *daemon) resynchronize() error {
	var errs []error
	for _, name := range d.orchestrator.Applications() {
		if err := d.orchestrator.ResynchronizeAgents(name); err != nil {
			errs = append(errs, errors.Annotatef(err, "application %q", name))
		}
	}
	return stderrors.Join(errs...)
}

// Kill is part of the worker.Worker interface.
func (d *daemon) Kill() {
	d.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (d *daemon) Wait() error {
	return d.catacomb.Wait()
}

func (d *daemon) loop() error {
	defer func() {
		d.orchestrator.Shutdown()
		_ = d.transport.Close()
	}()
	<-d.catacomb.Dying()
	return d.catacomb.ErrDying()
}
