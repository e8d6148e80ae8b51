// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/juju/deploymgr/core/instance"
)

const spanPrefix = "orchestrator."

// startSpan starts the span of one orchestrator operation. Operations
// take no context, so every span is a root span.
func (o *Orchestrator) startSpan(op, appName string, path instance.Path) trace.Span {
	attrs := []attribute.KeyValue{attribute.String("deploymgr.application", appName)}
	if path != "" {
		attrs = append(attrs, attribute.String("deploymgr.path", path.String()))
	}
	_, span := o.tracer.Start(context.Background(), spanPrefix+op, trace.WithAttributes(attrs...))
	return span
}

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
