package nodeflow

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// nodeSpec is a registered node plus its per-node execution configuration.
type nodeSpec struct {
	id         string
	impl       Node
	order      int
	maxRetries int
	wait       time.Duration
}

// NodeOption configures a node at registration time.
type NodeOption func(*nodeSpec)

// WithMaxRetries sets how many times Exec is attempted before the node's
// fallback (or failure). Default: 1, meaning no retry.
//
// Panics if n < 1.
func WithMaxRetries(n int) NodeOption {
	if n < 1 {
		panic("nodeflow: max retries must be >= 1")
	}
	return func(s *nodeSpec) {
		s.maxRetries = n
	}
}

// WithRetryWait sets the pause between failed Exec attempts. The wait is
// skipped after the final attempt. Default: 0.
//
// Panics if d is negative.
func WithRetryWait(d time.Duration) NodeOption {
	if d < 0 {
		panic("nodeflow: retry wait must not be negative")
	}
	return func(s *nodeSpec) {
		s.wait = d
	}
}

// Graph is a mutable builder for creating flows. Use NewGraph to create a
// new graph, then chain AddNode, On, AddEdge, and SetEntry calls to define
// the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine to
// construct the graph, then call Compile() to create an immutable Flow that
// can be safely shared.
//
// Example:
//
//	graph := nodeflow.NewGraph().
//	    AddNode("review", reviewNode).
//	    AddNode("payment", paymentNode).
//	    AddNode("finish", finishNode).
//	    On("review", "approved", "payment").
//	    On("review", "rejected", "finish").
//	    AddEdge("payment", "finish").
//	    SetEntry("review")
//
//	flow, err := graph.Compile()
type Graph struct {
	mu         sync.RWMutex
	nodes      map[string]*nodeSpec
	edges      map[string]map[string][]string
	entryPoint string
	seq        int
}

// NewGraph creates a new graph builder.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*nodeSpec),
		edges: make(map[string]map[string][]string),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// A *Flow may be registered as a node, nesting its whole graph as a single
// step of this one.
//
// Panics if:
//   - id is empty
//   - id contains whitespace (space, tab, newline)
//   - node is nil
//   - id already exists in the graph
func (g *Graph) AddNode(id string, node Node, opts ...NodeOption) *Graph {
	if id == "" {
		panic("nodeflow: node ID cannot be empty")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("nodeflow: node ID cannot contain whitespace")
	}

	if node == nil {
		panic("nodeflow: node cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("nodeflow: duplicate node ID: %s", id))
	}

	spec := &nodeSpec{
		id:         id,
		impl:       node,
		order:      g.seq,
		maxRetries: 1,
	}
	g.seq++
	for _, opt := range opts {
		opt(spec)
	}

	g.nodes[id] = spec
	return g
}

// On adds an edge from one node to another along the named action.
// Returns the graph for method chaining.
//
// Multiple targets may be registered for the same (from, action) pair; a
// single trigger of that action then runs all of them, in registration
// order. Actions triggered at runtime with no registered edge are not an
// error - the branch simply ends there.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph) On(from, action, to string) *Graph {
	if action == "" {
		panic("nodeflow: action cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.edges[from] == nil {
		g.edges[from] = make(map[string][]string)
	}
	g.edges[from][action] = append(g.edges[from][action], to)
	return g
}

// AddEdge adds an edge along the implicit DefaultAction, fired by nodes
// whose Post queues no explicit trigger.
// Returns the graph for method chaining.
func (g *Graph) AddEdge(from, to string) *Graph {
	return g.On(from, DefaultAction, to)
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph) SetEntry(id string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// Compile validates the graph and returns an immutable Flow.
//
// Validation errors:
//   - ErrNoEntryPoint if SetEntry was never called
//   - ErrEntryNotFound if the entry references an unknown node
//   - ErrNodeNotFound if any edge endpoint references an unknown node
func (g *Graph) Compile(opts ...CompileOption) (*Flow, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.entryPoint == "" {
		return nil, ErrNoEntryPoint
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint)
	}

	for from, byAction := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrNodeNotFound, from)
		}
		for action, targets := range byAction {
			for _, to := range targets {
				if _, ok := g.nodes[to]; !ok {
					return nil, fmt.Errorf("%w: edge %s -[%s]-> %s", ErrNodeNotFound, from, action, to)
				}
			}
		}
	}

	cfg := defaultCompileConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Copy the topology so later builder mutations cannot leak into the flow.
	nodes := make(map[string]*nodeSpec, len(g.nodes))
	for id, spec := range g.nodes {
		copied := *spec
		nodes[id] = &copied
	}
	edges := make(map[string]map[string][]string, len(g.edges))
	for from, byAction := range g.edges {
		edges[from] = make(map[string][]string, len(byAction))
		for action, targets := range byAction {
			edges[from][action] = append([]string(nil), targets...)
		}
	}

	return &Flow{
		nodes:     nodes,
		edges:     edges,
		entry:     g.entryPoint,
		maxVisits: cfg.maxVisits,
		parallel:  cfg.parallel,
	}, nil
}
