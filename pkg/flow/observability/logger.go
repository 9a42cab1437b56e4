// Package observability provides structured logging, metrics, and
// tracing helpers for the flow engine and persistence sync.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when
// disabled. Every logging helper tolerates a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// LogRunStart logs the start of a node run.
func LogRunStart(logger *slog.Logger, nodeID, kind, runID string) {
	if logger == nil {
		return
	}
	logger.Info("node run starting",
		slog.String("node_id", nodeID),
		slog.String("node_kind", kind),
		slog.String("run_id", runID),
	)
}

// LogRunSucceeded logs successful node run completion.
func LogRunSucceeded(logger *slog.Logger, nodeID, kind string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("node run succeeded",
		slog.String("node_id", nodeID),
		slog.String("node_kind", kind),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRunFailed logs node run failure.
func LogRunFailed(logger *slog.Logger, nodeID, kind string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("node run failed",
		slog.String("node_id", nodeID),
		slog.String("node_kind", kind),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogBatchSlot logs one batch sub-call resolving.
func LogBatchSlot(logger *slog.Logger, nodeID string, slot int, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("batch slot failed",
			slog.String("node_id", nodeID),
			slog.Int("slot", slot),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("batch slot completed",
		slog.String("node_id", nodeID),
		slog.Int("slot", slot),
	)
}

// LogProviderCall logs a generation collaborator call.
func LogProviderCall(logger *slog.Logger, provider, op string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("provider call failed",
			slog.String("provider", provider),
			slog.String("op", op),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("provider call completed",
		slog.String("provider", provider),
		slog.String("op", op),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogUpload logs a storage pre-step upload.
func LogUpload(logger *slog.Logger, nodeID, url string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("upload failed",
			slog.String("node_id", nodeID),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("upload completed",
		slog.String("node_id", nodeID),
		slog.String("url", url),
	)
}

// LogFanOut logs one-hop result propagation.
func LogFanOut(logger *slog.Logger, sourceID, targetID string) {
	if logger == nil {
		return
	}
	logger.Debug("result fanned out",
		slog.String("source_id", sourceID),
		slog.String("target_id", targetID),
	)
}

// LogSnapshotWrite logs a persisted snapshot write.
func LogSnapshotWrite(logger *slog.Logger, projectID string, sizeBytes int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("snapshot written",
		slog.String("project_id", projectID),
		slog.Int("size_bytes", sizeBytes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSnapshotError logs a snapshot write failure (non-fatal; memory
// stays authoritative and the write retries next cycle).
func LogSnapshotError(logger *slog.Logger, projectID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("snapshot write failed",
		slog.String("project_id", projectID),
		slog.String("error", err.Error()),
	)
}

// LogHydration logs the graph store being loaded from a persisted
// snapshot.
func LogHydration(logger *slog.Logger, projectID string, nodes, edges int) {
	if logger == nil {
		return
	}
	logger.Info("graph hydrated",
		slog.String("project_id", projectID),
		slog.Int("nodes", nodes),
		slog.Int("edges", edges),
	)
}

// TimedOperation measures the duration of an operation. The returned
// func reports elapsed milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
