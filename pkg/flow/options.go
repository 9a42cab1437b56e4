package flow

import (
	"log/slog"

	"github.com/atelierhq/easelflow/pkg/flow/observability"
	"github.com/atelierhq/easelflow/pkg/flow/provider"
	"github.com/atelierhq/easelflow/pkg/flow/storage"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithImageGenerator sets the image generation collaborator. Runs of
// generator kinds fail with ErrNoProvider when none is set.
func WithImageGenerator(g provider.ImageGenerator) EngineOption {
	return func(e *Engine) {
		e.images = g
	}
}

// WithVideoGenerator sets the video generation collaborator.
func WithVideoGenerator(g provider.VideoGenerator) EngineOption {
	return func(e *Engine) {
		e.videos = g
	}
}

// WithTextGenerator sets the text collaborator used by chat, optimizer,
// analyzer, and storyboard kinds.
func WithTextGenerator(g provider.TextGenerator) EngineOption {
	return func(e *Engine) {
		e.texts = g
	}
}

// WithUploader sets the storage collaborator used for the video
// pre-step upload. Without one, input values pass to the video
// collaborator unchanged.
func WithUploader(u storage.Uploader) EngineOption {
	return func(e *Engine) {
		e.uploads = u
	}
}

// WithLogger sets the engine's structured logger. A nil logger keeps
// the engine silent.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op.
func WithMetrics(r observability.Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithTracing sets the span manager. Defaults to a no-op.
func WithTracing(m observability.SpanManager) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.spans = m
		}
	}
}

// WithProjectID tags collaborator calls (upload metadata) with the
// owning project.
func WithProjectID(id string) EngineOption {
	return func(e *Engine) {
		e.projectID = id
	}
}

// WithBatchSize caps the sub-call count of batch generator runs.
// Clamped to [1, BatchSlots].
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		if n > BatchSlots {
			n = BatchSlots
		}
		e.batchSize = n
	}
}

// WithBatchConcurrency caps how many batch sub-calls run at once.
// Values below 1 are treated as 1.
func WithBatchConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.batchConcurrency = n
	}
}
