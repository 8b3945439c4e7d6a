// Package tracing wraps the OpenTelemetry tracer used to annotate each
// execute() call with a root span and one child span per state-machine step.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "scriptbox/internal/sandbox"

// Tracer returns the package-scoped tracer. Callers that never register a
// TracerProvider (e.g. tests) get a no-op tracer automatically: otel.Tracer
// returns a no-op implementation until a TracerProvider is registered via
// otel.SetTracerProvider, as the CLI demo does.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a child span named name under ctx's active span, if any.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if non-nil) on span and sets the span status, then
// ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
