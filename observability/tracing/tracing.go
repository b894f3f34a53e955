// Package tracing carries the ambient trace id through context.Context and
// creates spans via the OpenTelemetry API, with no exporter wired — the
// default TracerProvider is OTel's own no-op provider, since concrete
// tracing backends are collaborators layered outside this core. Trace
// context travels as an explicit context.Context value rather than a global
// singleton, so it stays correct across concurrently running nodes.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghostweasellabs/arachne/internal/ids"
)

type traceIDKey struct{}

// WithTraceID returns a context carrying trace id id as the ambient trace
// context, adopted for the duration of a handler invocation.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, id)
}

// TraceIDFromContext returns the trace id carried on ctx, if any.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(traceIDKey{}).(string)
	return id, ok
}

// tracerName is the instrumentation scope name registered with the global
// otel TracerProvider.
const tracerName = "github.com/ghostweasellabs/arachne"

// StartSpan starts a span named name as a child of any span in ctx, using the
// global otel TracerProvider (the process-wide no-op provider unless a
// collaborator installs a real one), additionally adopting the ambient trace id from ctx as a span
// attribute so log lines and spans correlate even without an exporter.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if id, ok := TraceIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("trace_id", id))
	}
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// GenerateTraceID returns a fresh trace id, for callers that need to seed
// ambient context before any message exists.
func GenerateTraceID() string {
	return ids.NewTraceID()
}
