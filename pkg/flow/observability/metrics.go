package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records flow metrics. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// RecordRun records a completed node run with its terminal status.
	RecordRun(ctx context.Context, kind, status string, duration time.Duration)

	// RecordProviderCall records one generation collaborator call.
	RecordProviderCall(ctx context.Context, provider, op string, duration time.Duration, err error)

	// RecordBatchSlot records one batch sub-call outcome.
	RecordBatchSlot(ctx context.Context, kind string, success bool)

	// RecordSnapshotWrite records a persisted snapshot write.
	RecordSnapshotWrite(ctx context.Context, sizeBytes int, duration time.Duration)
}

// otelRecorder implements Recorder using OpenTelemetry.
type otelRecorder struct {
	meter metric.Meter

	runs          metric.Int64Counter
	runLatency    metric.Float64Histogram
	runErrors     metric.Int64Counter
	providerCalls metric.Int64Counter
	callLatency   metric.Float64Histogram
	batchSlots    metric.Int64Counter
	snapWrites    metric.Int64Counter
	snapBytes     metric.Int64Histogram
	snapLatency   metric.Float64Histogram
}

var (
	defaultRecorderOnce sync.Once
	defaultRecorder     Recorder
)

// NewRecorder creates a Recorder backed by the global OpenTelemetry
// meter provider. Falls back to NoopRecorder if instrument creation
// fails.
func NewRecorder() Recorder {
	defaultRecorderOnce.Do(func() {
		rec, err := newOtelRecorder()
		if err != nil {
			slog.Warn("failed to initialize metrics, using noop recorder",
				slog.String("error", err.Error()))
			defaultRecorder = NoopRecorder{}
			return
		}
		defaultRecorder = rec
	})
	return defaultRecorder
}

func newOtelRecorder() (*otelRecorder, error) {
	meter := otel.Meter("easelflow")

	runs, err := meter.Int64Counter("flow.node.runs",
		metric.WithDescription("Total node runs by kind and terminal status"))
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("flow.node.latency_ms",
		metric.WithDescription("Node run latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	runErrors, err := meter.Int64Counter("flow.node.errors",
		metric.WithDescription("Total failed node runs by kind"))
	if err != nil {
		return nil, err
	}

	providerCalls, err := meter.Int64Counter("flow.provider.calls",
		metric.WithDescription("Total generation collaborator calls"))
	if err != nil {
		return nil, err
	}

	callLatency, err := meter.Float64Histogram("flow.provider.latency_ms",
		metric.WithDescription("Generation collaborator call latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	batchSlots, err := meter.Int64Counter("flow.batch.slots",
		metric.WithDescription("Batch sub-call outcomes by kind and result"))
	if err != nil {
		return nil, err
	}

	snapWrites, err := meter.Int64Counter("flow.snapshot.writes",
		metric.WithDescription("Total persisted snapshot writes"))
	if err != nil {
		return nil, err
	}

	snapBytes, err := meter.Int64Histogram("flow.snapshot.size_bytes",
		metric.WithDescription("Persisted snapshot size in bytes"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}

	snapLatency, err := meter.Float64Histogram("flow.snapshot.latency_ms",
		metric.WithDescription("Persisted snapshot write latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &otelRecorder{
		meter:         meter,
		runs:          runs,
		runLatency:    runLatency,
		runErrors:     runErrors,
		providerCalls: providerCalls,
		callLatency:   callLatency,
		batchSlots:    batchSlots,
		snapWrites:    snapWrites,
		snapBytes:     snapBytes,
		snapLatency:   snapLatency,
	}, nil
}

func (r *otelRecorder) RecordRun(ctx context.Context, kind, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("node_kind", kind),
		attribute.String("status", status),
	)
	r.runs.Add(ctx, 1, attrs)
	r.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if status == "failed" {
		r.runErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("node_kind", kind)))
	}
}

func (r *otelRecorder) RecordProviderCall(ctx context.Context, provider, op string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("op", op),
		attribute.Bool("error", err != nil),
	)
	r.providerCalls.Add(ctx, 1, attrs)
	r.callLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (r *otelRecorder) RecordBatchSlot(ctx context.Context, kind string, success bool) {
	r.batchSlots.Add(ctx, 1, metric.WithAttributes(
		attribute.String("node_kind", kind),
		attribute.Bool("success", success),
	))
}

func (r *otelRecorder) RecordSnapshotWrite(ctx context.Context, sizeBytes int, duration time.Duration) {
	r.snapWrites.Add(ctx, 1)
	r.snapBytes.Record(ctx, int64(sizeBytes))
	r.snapLatency.Record(ctx, float64(duration.Milliseconds()))
}
