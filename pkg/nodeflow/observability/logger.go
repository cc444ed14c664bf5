// Package observability provides production-grade observability features
// for nodeflow: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds nodeflow context to a logger.
// Returns a new logger with run_id, node_id, and retry fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "process", 0)
//	enriched.Info("doing work") // includes run_id, node_id, retry
func EnrichLogger(logger *slog.Logger, runID, nodeID string, retry int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("node_id", nodeID),
		slog.Int("retry", retry),
	)
}

// LogRunStart logs the start of a flow run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("flow run starting",
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful flow run completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, nodeCount int) {
	if logger == nil {
		return
	}
	logger.Info("flow run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes_executed", nodeCount),
	)
}

// LogRunError logs flow run failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("flow run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogRetry logs a failed exec attempt that will be retried.
func LogRetry(logger *slog.Logger, nodeID string, attempt, maxRetries int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("exec attempt failed, retrying",
		slog.String("node_id", nodeID),
		slog.Int("attempt", attempt),
		slog.Int("max_retries", maxRetries),
		slog.String("error", err.Error()),
	)
}

// LogFlowEnd logs a branch ending on an action with no wired successor.
// This is a normal terminal condition, not an error.
func LogFlowEnd(logger *slog.Logger, nodeID, action string) {
	if logger == nil {
		return
	}
	logger.Warn("flow ends: action has no successor",
		slog.String("node_id", nodeID),
		slog.String("action", action),
	)
}

// LogFanOut logs a node fanning out into multiple branches.
func LogFanOut(logger *slog.Logger, nodeID string, branches int) {
	if logger == nil {
		return
	}
	logger.Debug("fan-out",
		slog.String("node_id", nodeID),
		slog.Int("branches", branches),
	)
}

// LogRunLogSave logs a persisted run record.
func LogRunLogSave(logger *slog.Logger, runID string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("run record saved",
		slog.String("run_id", runID),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogRunLogError logs run record persistence failure (non-fatal).
func LogRunLogError(logger *slog.Logger, runID string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run record failed",
		slog.String("run_id", runID),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
