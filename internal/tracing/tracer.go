// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package tracing exports the spans of orchestrator operations.
package tracing

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/juju/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/tomb.v2"

	"github.com/juju/deploymgr/core/logger"
)

// Exporter kinds.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

const shutdownTimeout = 5 * time.Second

// Config holds the exporter settings.
type Config struct {
	// Exporter is ExporterOTLP or ExporterStdout.
	Exporter string

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// Writer receives the stdout exporter's output. It defaults to
	// os.Stdout.
	Writer io.Writer

	ServiceName       string
	ServiceInstanceID string

	Logger logger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	switch c.Exporter {
	case ExporterOTLP:
		if c.Endpoint == "" {
			return errors.NotValidf("otlp exporter without endpoint")
		}
	case ExporterStdout:
	default:
		return errors.NotValidf("exporter %q", c.Exporter)
	}
	if c.ServiceName == "" {
		return errors.NotValidf("empty ServiceName")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Tracer is a worker owning a tracer provider. Spans still buffered
// are exported when it stops.
type Tracer struct {
	tomb     tomb.Tomb
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	logger   logger.Logger
}

// NewTracerWorker starts a tracer exporting through the configured
// exporter.
func NewTracerWorker(ctx context.Context, cfg Config) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, errors.Annotatef(err, "creating %s exporter", cfg.Exporter)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg.ServiceName, cfg.ServiceInstanceID)),
	)
	t := &Tracer{
		provider: provider,
		tracer:   provider.Tracer(cfg.ServiceName),
		logger:   cfg.Logger,
	}
	t.tomb.Go(t.loop)
	return t, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Exporter == ExporterStdout {
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w))
	}
	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(options...))
}

func newResource(serviceName, serviceID string) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if serviceID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(serviceID))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// Tracer returns the tracer handing spans to the provider.
func (t *Tracer) Tracer() trace.Tracer {
	return t.tracer
}

// Kill is part of the worker.Worker interface.
func (t *Tracer) Kill() {
	t.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (t *Tracer) Wait() error {
	return t.tomb.Wait()
}

func (t *Tracer) loop() error {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := t.provider.ForceFlush(ctx); err != nil {
			t.logger.Infof("failed to flush spans: %v", err)
		}
		if err := t.provider.Shutdown(ctx); err != nil {
			t.logger.Infof("failed to shutdown provider: %v", err)
		}
	}()

	<-t.tomb.Dying()
	return tomb.ErrDying
}
