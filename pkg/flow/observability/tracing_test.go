package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest swaps in an in-memory span exporter and returns it
// plus a SpanManager bound to it and a cleanup function.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, SpanManager, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Build the manager after the provider swap so its tracer binds to
	// the test provider.
	manager := NewSpanManager()

	cleanup := func() {
		otel.SetTracerProvider(original)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("error shutting down tracer provider: %v", err)
		}
	}
	return exporter, manager, cleanup
}

func TestStartRunSpan(t *testing.T) {
	exporter, manager, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with run attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := manager.StartRunSpan(ctx, "node-1", "image", "run-123")
		require.NotNil(t, span)
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "flow.run", s.Name)

		var nodeID, kind, runID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "node_id":
				nodeID = attr.Value.AsString()
			case "node_kind":
				kind = attr.Value.AsString()
			case "run_id":
				runID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "node-1", nodeID)
		assert.Equal(t, "image", kind)
		assert.Equal(t, "run-123", runID)
	})

	t.Run("returns derived context", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := manager.StartRunSpan(ctx, "node-1", "image", "run-456")
		assert.NotEqual(t, ctx, newCtx)
		span.End()

		require.Len(t, exporter.GetSpans(), 1)
	})
}

func TestStartCallSpan(t *testing.T) {
	exporter, manager, cleanup := setupTracingTest(t)
	defer cleanup()

	_, span := manager.StartCallSpan(context.Background(), "image", "blend")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "flow.provider.blend", spans[0].Name)

	var provider string
	for _, attr := range spans[0].Attributes {
		if attr.Key == "provider" {
			provider = attr.Value.AsString()
		}
	}
	assert.Equal(t, "image", provider)
}

func TestCallSpan_ChildOfRunSpan(t *testing.T) {
	exporter, manager, cleanup := setupTracingTest(t)
	defer cleanup()

	ctx, runSpan := manager.StartRunSpan(context.Background(), "node-1", "video", "run-1")
	_, callSpan := manager.StartCallSpan(ctx, "video", "generate")
	callSpan.End()
	runSpan.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	// Spans export in end order: call first, then run.
	call, run := spans[0], spans[1]
	assert.Equal(t, "flow.provider.generate", call.Name)
	assert.Equal(t, run.SpanContext.SpanID(), call.Parent.SpanID())
}

func TestEndSpanWithError(t *testing.T) {
	exporter, manager, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("records error and sets error status", func(t *testing.T) {
		_, span := manager.StartRunSpan(context.Background(), "node-1", "image", "run-1")
		manager.EndSpanWithError(span, errors.New("generation failed"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "generation failed", spans[0].Status.Description)
		require.NotEmpty(t, spans[0].Events)
		assert.Equal(t, "exception", spans[0].Events[0].Name)
	})

	t.Run("sets ok status on success", func(t *testing.T) {
		exporter.Reset()

		_, span := manager.StartRunSpan(context.Background(), "node-1", "image", "run-2")
		manager.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, manager, cleanup := setupTracingTest(t)
	defer cleanup()

	ctx, span := manager.StartRunSpan(context.Background(), "node-1", "image-batch", "run-1")
	manager.AddSpanEvent(ctx, "slot completed", attribute.Int("slot", 2))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "slot completed", spans[0].Events[0].Name)
}
