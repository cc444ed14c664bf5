package nodeflow

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/observability"
	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/nodeflow/pkg/nodeflow/runlog"
)

// Run executes the flow with the given initial global state.
// Returns the ExecutionTree describing which nodes ran and what they
// triggered, and any error encountered.
//
// Execution flow:
//  1. Seed a fresh Memory from initialState
//  2. Run the entry node's lifecycle (prep -> exec with retry -> post)
//  3. Resolve each queued trigger to its successors, forking a child
//     Memory per trigger
//  4. Recurse into successors - in trigger order for sequential flows,
//     concurrently with a join for parallel flows
//  5. A branch ends when a node triggers nothing further, or triggers an
//     action with no wired successor
//
// An unrecovered node error aborts the whole run; whatever was already
// written to the global store before the failure is not rolled back.
//
// Example:
//
//	ctx := nodeflow.NewContext(context.Background())
//	tree, err := flow.Run(ctx, map[string]any{"amount": 50})
func (f *Flow) Run(ctx Context, initialState map[string]any, opts ...RunOption) (tree *ExecutionTree, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = ctx.RunID()
	}

	startTime := time.Now()

	observability.LogRunStart(cfg.logger, cfg.runID)

	// Start run span if tracing enabled
	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, f.entry, cfg.runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	mem := NewMemory(initialState)
	rs := &runState{
		flow:   f,
		cfg:    &cfg,
		visits: make(map[string]int),
	}

	tree, runErr = rs.runNode(ctx, execCtx, f.entry, mem)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	cfg.metrics.RecordFlowRun(ctx, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, cfg.runID, runErr, durationMs, lastNodeOf(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, cfg.runID, durationMs, rs.nodeCount)
	}

	if cfg.runLog != nil {
		f.saveRunRecord(ctx, &cfg, tree, mem, startTime, duration, runErr)
	}

	return tree, runErr
}

// lastNodeOf extracts the failing node ID from a run error, if it has one.
func lastNodeOf(err error) string {
	switch e := err.(type) {
	case *NodeError:
		return e.NodeID
	case *PanicError:
		return e.NodeID
	case *CycleLimitError:
		return e.NodeID
	case *CancellationError:
		return e.NodeID
	default:
		return ""
	}
}

// subflowRunner is satisfied by *Flow (and anything embedding it), letting
// the executor substitute an internal graph run for the Exec phase.
// Unwired actions inside the sub-flow surface through out as triggers of
// the flow-as-node.
type subflowRunner interface {
	runSubflow(ctx Context, tctx context.Context, mem *Memory, out *Triggers, cfg *runConfig) (*ExecutionTree, error)
}

// runSubflow runs the flow's internal graph as the exec phase of a nested
// flow node. Visit counters are scoped to this sub-run; the parent flow's
// counters track the sub-flow as a single node.
func (f *Flow) runSubflow(ctx Context, tctx context.Context, mem *Memory, out *Triggers, cfg *runConfig) (*ExecutionTree, error) {
	rs := &runState{
		flow:      f,
		cfg:       cfg,
		propagate: out,
		visits:    make(map[string]int),
	}
	return rs.runNode(ctx, tctx, f.entry, mem)
}

// runState is the per-run mutable state of one flow: visit counters for the
// cycle guard plus the propagation target when the flow is nested.
type runState struct {
	flow      *Flow
	cfg       *runConfig
	propagate *Triggers

	mu        sync.Mutex
	visits    map[string]int
	nodeCount int
}

// bumpVisit increments and returns the per-run visit count for a node.
func (rs *runState) bumpVisit(id string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.visits[id]++
	return rs.visits[id]
}

// countNode records one completed node execution.
func (rs *runState) countNode() {
	rs.mu.Lock()
	rs.nodeCount++
	rs.mu.Unlock()
}

// propagateTrigger forwards an unwired action to the parent flow.
// Guarded because parallel sibling branches may propagate concurrently.
func (rs *runState) propagateTrigger(action string, forkingData map[string]any) {
	rs.mu.Lock()
	rs.propagate.Trigger(action, forkingData)
	rs.mu.Unlock()
}

// branchRun is one trigger resolved to wired successors, with the Memory
// view forked for that branch.
type branchRun struct {
	action  string
	targets []string
	mem     *Memory
}

// runNode executes one node's full lifecycle against a private clone of the
// incoming Memory view, then resolves and runs whatever it triggered.
// Returns the node's ExecutionTree.
func (rs *runState) runNode(ctx Context, tctx context.Context, id string, mem *Memory) (*ExecutionTree, error) {
	spec, ok := rs.flow.nodes[id]
	if !ok {
		// Unreachable after a successful Compile.
		return nil, &NodeError{NodeID: id, Op: "lookup", Err: fmt.Errorf("node not found: %s", id)}
	}

	if visits := rs.bumpVisit(id); visits > rs.flow.maxVisits {
		return nil, &CycleLimitError{NodeID: id, Order: spec.order, Limit: rs.flow.maxVisits}
	}

	// Check for cancellation before executing the node
	select {
	case <-ctx.Done():
		return nil, &CancellationError{NodeID: id, Cause: ctx.Err()}
	default:
	}

	nodeCtx := enrichContext(ctx, id)

	observability.LogNodeStart(rs.cfg.logger, id)

	// Start node span if tracing enabled
	nodeTctx := tctx
	var nodeSpan trace.Span
	if rs.cfg.tracingEnabled {
		nodeTctx, nodeSpan = rs.cfg.spans.StartNodeSpan(tctx, id)
	}

	nodeStart := time.Now()

	// Each execution gets its own Memory view so sibling branches sharing a
	// fork never see each other's local writes.
	mem = mem.Clone(nil)

	out := &Triggers{}
	nodeErr := rs.executeNode(nodeCtx, nodeTctx, spec, mem, out)

	nodeDuration := time.Since(nodeStart)
	rs.cfg.metrics.RecordNodeExecution(nodeTctx, id, nodeDuration, nodeErr)
	if rs.cfg.tracingEnabled {
		rs.cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
	}

	if nodeErr != nil {
		observability.LogNodeError(rs.cfg.logger, id, nodeErr)
		return nil, nodeErr
	}
	observability.LogNodeComplete(rs.cfg.logger, id, float64(nodeDuration.Milliseconds()))
	rs.countNode()

	// A node that queued nothing implicitly fires the default action.
	queued := out.queued
	if len(queued) == 0 {
		queued = []Trigger{{Action: DefaultAction}}
	}

	tree := &ExecutionTree{
		Order:     spec.order,
		NodeID:    id,
		Triggered: make(map[string][]*ExecutionTree),
	}

	var branches []branchRun
	for _, tr := range queued {
		forked := mem.Clone(tr.ForkingData)
		targets := rs.flow.edges[id][tr.Action]
		if len(targets) == 0 {
			// Unwired action: the branch ends here. Inside a nested flow the
			// action becomes a trigger of the flow-as-node in the parent graph,
			// carrying this branch's local context with it.
			if tr.Action != DefaultAction && len(rs.flow.edges[id]) > 0 {
				observability.LogFlowEnd(rs.cfg.logger, id, tr.Action)
			}
			if _, seen := tree.Triggered[tr.Action]; !seen {
				tree.Triggered[tr.Action] = []*ExecutionTree{}
			}
			if rs.propagate != nil {
				rs.propagateTrigger(tr.Action, forked.Local().Snapshot())
			}
			continue
		}
		branches = append(branches, branchRun{action: tr.Action, targets: targets, mem: forked})
	}

	if len(branches) > 1 {
		observability.LogFanOut(rs.cfg.logger, id, len(branches))
		rs.cfg.metrics.RecordFanOut(nodeTctx, id, int64(len(branches)))
	}

	if len(branches) > 0 {
		results := make([][]*ExecutionTree, len(branches))
		err := rs.runAll(len(branches), func(i int) error {
			b := branches[i]
			subtrees := make([]*ExecutionTree, len(b.targets))
			targetsErr := rs.runAll(len(b.targets), func(j int) error {
				subtree, nodeErr := rs.runNode(ctx, nodeTctx, b.targets[j], b.mem)
				subtrees[j] = subtree
				return nodeErr
			})
			results[i] = subtrees
			return targetsErr
		})
		if err != nil {
			return nil, err
		}
		// Merge in declaration order so repeated triggers of one action append
		// their subtrees deterministically.
		for i, b := range branches {
			tree.Triggered[b.action] = append(tree.Triggered[b.action], results[i]...)
		}
	}

	return tree, nil
}

// runAll runs n tasks with the flow's fan-out discipline: strictly in order
// for sequential flows, concurrently with a full join for parallel flows.
// In both cases the first error (by task index) is returned only after every
// launched task has finished.
func (rs *runState) runAll(n int, fn func(int) error) error {
	if n == 0 {
		return nil
	}
	if !rs.flow.parallel || n == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// executeNode runs one node's three-phase lifecycle with panic recovery.
// For nested flows the internal graph run substitutes for Exec.
func (rs *runState) executeNode(ctx Context, tctx context.Context, spec *nodeSpec, mem *Memory, out *Triggers) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				NodeID: spec.id,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	prepRes, prepErr := spec.impl.Prep(ctx, mem)
	if prepErr != nil {
		return &NodeError{NodeID: spec.id, Op: "prep", Err: prepErr}
	}

	var execRes any
	if sub, isFlow := spec.impl.(subflowRunner); isFlow {
		subtree, subErr := sub.runSubflow(ctx, tctx, mem, out, rs.cfg)
		if subErr != nil {
			return subErr
		}
		execRes = subtree
	} else {
		res, execErr := rs.execWithRetry(ctx, spec, prepRes)
		if execErr != nil {
			return execErr
		}
		execRes = res
	}

	if postErr := spec.impl.Post(ctx, mem, prepRes, execRes, out); postErr != nil {
		return &NodeError{NodeID: spec.id, Op: "post", Err: postErr}
	}
	return nil
}

// execWithRetry attempts Exec up to the node's maxRetries, pausing wait
// between failed attempts, then escalates to the node's fallback if it has
// one. The 0-based attempt index is observable inside Exec via ctx.Retry().
func (rs *runState) execWithRetry(ctx Context, spec *nodeSpec, prepRes any) (any, error) {
	var lastErr error
	for attempt := 0; attempt < spec.maxRetries; attempt++ {
		res, execErr := spec.impl.Exec(retryContext(ctx, attempt), prepRes)
		if execErr == nil {
			return res, nil
		}
		lastErr = execErr

		if attempt == spec.maxRetries-1 {
			break
		}
		observability.LogRetry(rs.cfg.logger, spec.id, attempt+1, spec.maxRetries, execErr)
		if spec.wait > 0 {
			select {
			case <-ctx.Done():
				return nil, &CancellationError{NodeID: spec.id, Cause: ctx.Err()}
			case <-time.After(spec.wait):
			}
		}
	}

	if fb, ok := spec.impl.(Fallback); ok {
		res, fbErr := fb.ExecFallback(ctx, prepRes, lastErr)
		if fbErr != nil {
			op := "fallback"
			if fbErr == lastErr {
				// Default re-raise: report the exec failure itself.
				op = "exec"
			}
			return nil, &NodeError{NodeID: spec.id, Op: op, Attempts: spec.maxRetries, Err: fbErr}
		}
		return res, nil
	}
	return nil, &NodeError{NodeID: spec.id, Op: "exec", Attempts: spec.maxRetries, Err: lastErr}
}

// saveRunRecord persists the run's ExecutionTree and final global store.
// Persistence is observational: failures are logged, never surfaced.
func (f *Flow) saveRunRecord(ctx Context, cfg *runConfig, tree *ExecutionTree, mem *Memory, startedAt time.Time, duration time.Duration, runErr error) {
	rec := runlog.New(cfg.runID, f.entry, startedAt).WithResult(duration, runErr)

	if tree != nil {
		treeJSON, err := json.Marshal(tree)
		if err != nil {
			observability.LogRunLogError(cfg.logger, cfg.runID, "marshal tree", err)
			return
		}
		rec = rec.WithTree(treeJSON)
	}

	finalJSON, err := json.Marshal(mem.GlobalSnapshot())
	if err != nil {
		// Non-serializable values in the global store are allowed; the record
		// is still useful without the snapshot.
		observability.LogRunLogError(cfg.logger, cfg.runID, "marshal state", err)
	} else {
		rec = rec.WithFinal(finalJSON)
	}

	data, err := rec.Marshal()
	if err != nil {
		observability.LogRunLogError(cfg.logger, cfg.runID, "marshal record", err)
		return
	}

	if err := cfg.runLog.Save(cfg.runID, data); err != nil {
		observability.LogRunLogError(cfg.logger, cfg.runID, "save", err)
		return
	}

	observability.LogRunLogSave(cfg.logger, cfg.runID, len(data))
	cfg.metrics.RecordRunRecord(ctx, int64(len(data)))
}
