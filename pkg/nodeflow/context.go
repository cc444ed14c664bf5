package nodeflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/llmkit/claude"
	"github.com/randalmurphal/nodeflow/pkg/nodeflow/runlog"
)

// Context provides execution context to nodes.
// It extends context.Context with nodeflow-specific services and metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID, retry index, and enriched logger.
type Context interface {
	context.Context

	// Services

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// LLM returns the LLM client, or nil if not configured.
	// Nodes should check for nil before using.
	LLM() claude.Client

	// RunLog returns the run history store, or nil if not configured.
	// Nodes should check for nil before using.
	RunLog() runlog.Store

	// Metadata

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// Retry returns the 0-based index of the current Exec attempt.
	// It is 0 on the first attempt and only meaningful inside Exec.
	Retry() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	llmClient claude.Client
	runLog    runlog.Store
	runID     string
	nodeID    string
	retry     int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// LLM returns the LLM client.
func (c *executionContext) LLM() claude.Client {
	return c.llmClient
}

// RunLog returns the run history store.
func (c *executionContext) RunLog() runlog.Store {
	return c.runLog
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Retry returns the current 0-based Exec attempt index.
func (c *executionContext) Retry() int {
	return c.retry
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id, node_id, and retry during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithLLM sets the LLM client for the context.
func WithLLM(client claude.Client) ContextOption {
	return func(c *executionContext) {
		c.llmClient = client
	}
}

// WithRunLogStore sets the run history store exposed to nodes via the context.
// To have the executor persist run records, pass WithRunLog to Run instead.
func WithRunLogStore(store runlog.Store) ContextOption {
	return func(c *executionContext) {
		c.runLog = store
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
// The returned Context wraps the provided context.Context and adds
// nodeflow-specific services and metadata.
//
// Example:
//
//	ctx := nodeflow.NewContext(context.Background(),
//	    nodeflow.WithLogger(myLogger),
//	    nodeflow.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNodeID returns a new context with the given node ID set.
// Used internally by the executor to enrich the context per-node.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	return &executionContext{
		Context:   c.Context,
		logger:    c.logger.With("run_id", c.runID, "node_id", nodeID),
		llmClient: c.llmClient,
		runLog:    c.runLog,
		runID:     c.runID,
		nodeID:    nodeID,
		retry:     c.retry,
	}
}

// withRetry returns a new context with the given 0-based attempt index set.
// Used internally by the retry loop.
func (c *executionContext) withRetry(retry int) *executionContext {
	derived := *c
	derived.retry = retry
	return &derived
}

// enrichContext derives a node-scoped Context when the concrete type is the
// internal one; foreign Context implementations are passed through unchanged.
func enrichContext(ctx Context, nodeID string) Context {
	if ec, ok := ctx.(*executionContext); ok {
		return ec.withNodeID(nodeID)
	}
	return ctx
}

// retryContext derives an attempt-scoped Context, mirroring enrichContext.
func retryContext(ctx Context, retry int) Context {
	if ec, ok := ctx.(*executionContext); ok {
		return ec.withRetry(retry)
	}
	return ctx
}
