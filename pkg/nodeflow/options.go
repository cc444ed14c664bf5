package nodeflow

import (
	"log/slog"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/config"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/runlog"
)

// runConfig holds configuration for a single flow run.
type runConfig struct {
	runID          string
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	runLog         runlog.Store
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior for one Run() call.
type RunOption func(*runConfig)

// WithRunID sets the run identifier used in logs, traces, and run records.
// Defaults to the context's RunID.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithObservabilityLogger enables structured run/node lifecycle logging to
// the given logger. Without it the executor emits no logs of its own;
// nodes always have ctx.Logger() regardless.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for this run.
//
// Configure the global meter provider before enabling:
//
//	otel.SetMeterProvider(yourProvider)
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry tracing for this run.
//
// Configure the global tracer provider before enabling:
//
//	otel.SetTracerProvider(yourProvider)
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithRunLog makes the executor persist a run record - the ExecutionTree
// plus a snapshot of the final global store - to the given store when the
// run finishes, whether it succeeded or failed. Save failures are logged
// and never fail the run.
func WithRunLog(store runlog.Store) RunOption {
	return func(c *runConfig) {
		c.runLog = store
	}
}

// ConfigOptions maps a loaded configuration to compile options.
//
// Recognized keys:
//   - max_visits (int): per-run visit limit, see WithMaxVisits
//   - parallel (bool): concurrent fan-out, see WithParallelBranches
//
// Example:
//
//	cfg, err := config.FromFile("flow.yaml")
//	if err != nil { ... }
//	flow, err := graph.Compile(nodeflow.ConfigOptions(cfg)...)
func ConfigOptions(c config.Config) []CompileOption {
	var opts []CompileOption
	if n := c.Int("max_visits", 0); n > 0 {
		opts = append(opts, WithMaxVisits(n))
	}
	if c.Bool("parallel", false) {
		opts = append(opts, WithParallelBranches())
	}
	return opts
}
