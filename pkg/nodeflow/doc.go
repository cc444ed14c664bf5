/*
Package nodeflow provides action-triggered graph orchestration for LLM workflows.

# Overview

nodeflow is a Go library for wiring units of work ("nodes") into directed
graphs whose edges are labeled with action names. A node runs a three-phase
lifecycle - prep, exec, post - against a two-scope Memory, and declares its
outgoing transitions at runtime by triggering actions during post. The
dominant cost in the intended workloads is waiting on external LLM calls,
so exec is where nodes block and retry.

The library offers:
  - A two-scope Memory (global store shared by the run, local store private
    to each branch) with lexical-style shadowing
  - Per-node retry with optional wait and a fallback hook
  - Branching, cycles (bounded by a per-run visit limit), fan-out with
    per-branch forked context, and nesting (a Flow used as a Node)
  - Sequential or concurrent execution of fanned-out branches
  - Structured logging via slog and OpenTelemetry metrics/tracing
  - Optional run history persistence (in-memory or SQLite)

# Basic Usage

Build a graph, compile it, run it with an initial global state:

	approve := nodeflow.NewNode(nodeflow.Funcs{
	    Post: func(ctx nodeflow.Context, mem *nodeflow.Memory, _, _ any, out *nodeflow.Triggers) error {
	        if amount, _ := mem.Value("amount").(int); amount >= 100 {
	            out.Trigger("approved", nil)
	        } else {
	            out.Trigger("rejected", nil)
	        }
	        return nil
	    },
	})

	graph := nodeflow.NewGraph().
	    AddNode("review", approve).
	    AddNode("payment", paymentNode).
	    AddNode("finish", finishNode).
	    On("review", "approved", "payment").
	    On("review", "rejected", "finish").
	    AddEdge("payment", "finish").
	    SetEntry("review")

	flow, err := graph.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := nodeflow.NewContext(context.Background())
	tree, err := flow.Run(ctx, map[string]any{"amount": 50})

The returned ExecutionTree records which nodes ran and what each triggered;
it exists for observability and testing, never for business logic.

# Memory

Reads through Memory resolve the branch-local store first and fall back to
the run-global store. Writes through Set always target the global store and
clear any local shadow of the key; writes through Local() stay private to
the branch. Triggering an action with forking data clones the local store
for the downstream branch and overlays the data, so a fan-out node can hand
each branch its own slice of context without leaking it to siblings:

	for i, item := range items {
	    out.Trigger("process", map[string]any{"item": item, "slot": i})
	}

The global store is safe to access from concurrent branches, but nodes that
write it concurrently should target distinct, pre-allocated slots.

# Fan-out Disciplines

Graph.Compile returns a sequential flow: fanned-out branches run in trigger
order, each to completion before the next starts. Compile with
WithParallelBranches() to run them concurrently; the fan-out joins before
the parent branch is considered complete. The two variants differ in
nothing else.

# Cycles

Edges may point back to earlier nodes. Each run counts visits per node and
fails with a CycleLimitError once a node exceeds the limit (default 15,
configurable with WithMaxVisits).

# Nesting

A compiled *Flow implements Node and can be registered in a parent graph.
Actions triggered inside the sub-flow with no successor there propagate
outward and are resolved against the parent graph's edges, composing graphs
across nesting levels.
*/
package nodeflow
