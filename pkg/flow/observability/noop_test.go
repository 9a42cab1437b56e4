package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	ctx := context.Background()

	// All methods are inert and must not panic.
	rec.RecordRun(ctx, "image", "succeeded", time.Second)
	rec.RecordProviderCall(ctx, "image", "generate", time.Second, errors.New("x"))
	rec.RecordBatchSlot(ctx, "image-batch", false)
	rec.RecordSnapshotWrite(ctx, 1024, time.Millisecond)
}

func TestNoopSpanManager(t *testing.T) {
	var m SpanManager = NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := m.StartRunSpan(ctx, "node-1", "image", "run-1")
	assert.NotNil(t, span)
	assert.NotNil(t, newCtx)
	assert.False(t, span.IsRecording())

	_, callSpan := m.StartCallSpan(ctx, "image", "edit")
	assert.False(t, callSpan.IsRecording())

	m.EndSpanWithError(span, errors.New("ignored"))
	m.AddSpanEvent(ctx, "ignored")
}
