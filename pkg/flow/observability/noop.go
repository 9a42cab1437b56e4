package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopRecorder is a Recorder that discards all metrics. Used when
// metrics are disabled.
type NoopRecorder struct{}

func (NoopRecorder) RecordRun(ctx context.Context, kind, status string, duration time.Duration) {}

func (NoopRecorder) RecordProviderCall(ctx context.Context, provider, op string, duration time.Duration, err error) {
}

func (NoopRecorder) RecordBatchSlot(ctx context.Context, kind string, success bool) {}

func (NoopRecorder) RecordSnapshotWrite(ctx context.Context, sizeBytes int, duration time.Duration) {}

// NoopSpanManager is a SpanManager that creates no-op spans. Used when
// tracing is disabled.
type NoopSpanManager struct{}

func (NoopSpanManager) StartRunSpan(ctx context.Context, nodeID, kind, runID string) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

func (NoopSpanManager) StartCallSpan(ctx context.Context, provider, op string) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

func (NoopSpanManager) EndSpanWithError(span trace.Span, err error) {}

func (NoopSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {}
