package nodeflow

import "sort"

// DefaultMaxVisits caps how many times any single node may execute within
// one run before the run fails with a CycleLimitError.
const DefaultMaxVisits = 15

// compileConfig holds flow-level configuration fixed at Compile() time.
type compileConfig struct {
	maxVisits int
	parallel  bool
}

// defaultCompileConfig returns the default flow configuration.
func defaultCompileConfig() compileConfig {
	return compileConfig{
		maxVisits: DefaultMaxVisits,
	}
}

// CompileOption configures the Flow produced by Graph.Compile.
type CompileOption func(*compileConfig)

// WithMaxVisits sets the per-run visit limit for each node.
// Default: DefaultMaxVisits.
//
// This is the only built-in protection against runaway cycles. Flows that
// legitimately iterate more often must raise the limit.
func WithMaxVisits(n int) CompileOption {
	return func(c *compileConfig) {
		if n > 0 {
			c.maxVisits = n
		}
	}
}

// WithParallelBranches makes the flow run simultaneously-triggered branches
// concurrently, joining before the parent fan-out is considered complete.
// Without it, branches run strictly in trigger order, each to completion
// before the next begins.
func WithParallelBranches() CompileOption {
	return func(c *compileConfig) {
		c.parallel = true
	}
}

// Flow is an immutable, executable graph produced by Graph.Compile.
//
// Flow is thread-safe and can be used concurrently for multiple Run() calls;
// every run gets fresh Memory and fresh visit counters. The graph topology
// cannot be modified after compilation.
//
// A Flow also implements Node, so it can be registered inside another graph
// via AddNode. When nested, running its internal graph takes the place of an
// Exec phase, and any action triggered by an internal node with no successor
// inside this flow propagates outward as a trigger of the flow-as-node.
// Embed *Flow in your own type to wrap it with custom Prep or Post phases.
type Flow struct {
	nodes     map[string]*nodeSpec
	edges     map[string]map[string][]string
	entry     string
	maxVisits int
	parallel  bool
}

// Compile-time interface check: a Flow is usable as a Node.
var _ Node = (*Flow)(nil)

// EntryPoint returns the entry node ID.
func (f *Flow) EntryPoint() string {
	return f.entry
}

// MaxVisits returns the configured per-run visit limit.
func (f *Flow) MaxVisits() int {
	return f.maxVisits
}

// Parallel reports whether fanned-out branches run concurrently.
func (f *Flow) Parallel() bool {
	return f.parallel
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (f *Flow) NodeIDs() []string {
	ids := make([]string, 0, len(f.nodes))
	for id := range f.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (f *Flow) HasNode(id string) bool {
	_, exists := f.nodes[id]
	return exists
}

// Actions returns the action labels with outgoing edges from the given node,
// sorted. Returns nil for unknown nodes or nodes with no outgoing edges.
func (f *Flow) Actions(id string) []string {
	byAction := f.edges[id]
	if len(byAction) == 0 {
		return nil
	}
	actions := make([]string, 0, len(byAction))
	for action := range byAction {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}

// Successors returns the target node IDs reachable from the given node along
// the named action, in registration order. Returns nil if none are wired.
func (f *Flow) Successors(id, action string) []string {
	byAction := f.edges[id]
	if byAction == nil {
		return nil
	}
	return append([]string(nil), byAction[action]...)
}

// Node interface implementation, used when a Flow is nested inside another
// graph. Prep and Post default to no-ops; Exec is never invoked because the
// executor substitutes the internal graph run for it.

// Prep implements Node. It is a no-op; embed *Flow to override.
func (f *Flow) Prep(Context, *Memory) (any, error) { return nil, nil }

// Exec implements Node. It always fails: a Flow's execution is its internal
// graph, which the executor runs in place of this method.
func (f *Flow) Exec(Context, any) (any, error) { return nil, ErrFlowExec }

// Post implements Node. It is a no-op; embed *Flow to override.
func (f *Flow) Post(Context, *Memory, any, any, *Triggers) error { return nil }

// ExecutionTree records what one node execution did during a run: its
// registration ordinal, its ID, and the subtrees produced by each action it
// triggered. An action that fired but had no successor maps to an empty
// list. The tree is purely observational - nodes never consult it.
type ExecutionTree struct {
	Order     int                         `json:"order"`
	NodeID    string                      `json:"node_id"`
	Triggered map[string][]*ExecutionTree `json:"triggered,omitempty"`
}
