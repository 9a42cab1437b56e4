package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanManager manages tracing spans for node runs and collaborator
// calls.
type SpanManager interface {
	// StartRunSpan starts a span for a node run.
	StartRunSpan(ctx context.Context, nodeID, kind, runID string) (context.Context, trace.Span)

	// StartCallSpan starts a child span for a collaborator call.
	StartCallSpan(ctx context.Context, provider, op string) (context.Context, trace.Span)

	// EndSpanWithError ends a span, recording err if non-nil.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in ctx.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager creates a SpanManager backed by the global
// OpenTelemetry tracer provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{
		tracer: otel.Tracer("easelflow"),
	}
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, nodeID, kind, runID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flow.run",
		trace.WithAttributes(
			attribute.String("node_id", nodeID),
			attribute.String("node_kind", kind),
			attribute.String("run_id", runID),
		),
	)
}

func (m *otelSpanManager) StartCallSpan(ctx context.Context, provider, op string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "flow.provider."+op,
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("op", op),
		),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
