package nodeflow

// DefaultAction is the edge label used when a node's Post phase queues no
// explicit trigger, and the label targeted by Graph.AddEdge.
const DefaultAction = "default"

// Node is the unit of work executed by a Flow. The three phases run in
// order for every execution:
//
//   - Prep reads whatever input the node needs from Memory and returns a
//     value handed to Exec.
//   - Exec performs the work (typically an external call). It must not touch
//     Memory and must be safe to invoke again on retry.
//   - Post writes results back into Memory and queues zero or more outgoing
//     triggers. It is the only phase with access to Triggers.
//
// Embed BaseNode to inherit no-op defaults for phases a node does not need.
type Node interface {
	Prep(ctx Context, mem *Memory) (any, error)
	Exec(ctx Context, prepRes any) (any, error)
	Post(ctx Context, mem *Memory, prepRes, execRes any, out *Triggers) error
}

// Fallback is implemented by nodes that want to recover after every Exec
// attempt has failed. The returned value flows into Post as if it were a
// normal Exec result. Nodes that do not implement Fallback propagate the
// final Exec error.
type Fallback interface {
	ExecFallback(ctx Context, prepRes any, execErr error) (any, error)
}

// BaseNode provides no-op implementations of all three phases.
// Embed it so a node only has to declare the phases it uses.
type BaseNode struct{}

// Prep returns nil.
func (BaseNode) Prep(Context, *Memory) (any, error) { return nil, nil }

// Exec returns the zero result.
func (BaseNode) Exec(Context, any) (any, error) { return nil, nil }

// Post queues nothing, which makes the node fire the default action.
func (BaseNode) Post(Context, *Memory, any, any, *Triggers) error { return nil }

// Funcs groups the lifecycle functions for a node built with NewNode.
// Any nil field behaves like the corresponding BaseNode default; a nil
// Fallback means Exec errors propagate after retries.
type Funcs struct {
	Prep     func(ctx Context, mem *Memory) (any, error)
	Exec     func(ctx Context, prepRes any) (any, error)
	Post     func(ctx Context, mem *Memory, prepRes, execRes any, out *Triggers) error
	Fallback func(ctx Context, prepRes any, execErr error) (any, error)
}

// NewNode adapts plain functions to the Node interface.
//
// Example:
//
//	graph.AddNode("double", nodeflow.NewNode(nodeflow.Funcs{
//	    Prep: func(ctx nodeflow.Context, mem *nodeflow.Memory) (any, error) {
//	        return mem.Value("item"), nil
//	    },
//	    Exec: func(ctx nodeflow.Context, prepRes any) (any, error) {
//	        return prepRes.(int) * 2, nil
//	    },
//	    Post: func(ctx nodeflow.Context, mem *nodeflow.Memory, prepRes, execRes any, out *nodeflow.Triggers) error {
//	        mem.Set("doubled", execRes)
//	        return nil
//	    },
//	}))
func NewNode(f Funcs) Node {
	return funcNode{f}
}

// funcNode is the private Node implementation behind NewNode.
type funcNode struct {
	f Funcs
}

// Compile-time interface checks.
var (
	_ Node     = funcNode{}
	_ Fallback = funcNode{}
)

// Prep implements Node.
func (n funcNode) Prep(ctx Context, mem *Memory) (any, error) {
	if n.f.Prep == nil {
		return nil, nil
	}
	return n.f.Prep(ctx, mem)
}

// Exec implements Node.
func (n funcNode) Exec(ctx Context, prepRes any) (any, error) {
	if n.f.Exec == nil {
		return nil, nil
	}
	return n.f.Exec(ctx, prepRes)
}

// Post implements Node.
func (n funcNode) Post(ctx Context, mem *Memory, prepRes, execRes any, out *Triggers) error {
	if n.f.Post == nil {
		return nil
	}
	return n.f.Post(ctx, mem, prepRes, execRes, out)
}

// ExecFallback implements Fallback. Without a Fallback function the original
// error is returned unchanged, matching the default "re-raise" behavior.
func (n funcNode) ExecFallback(ctx Context, prepRes any, execErr error) (any, error) {
	if n.f.Fallback == nil {
		return nil, execErr
	}
	return n.f.Fallback(ctx, prepRes, execErr)
}

// Trigger is one queued outgoing transition: the action labels the edge to
// follow and ForkingData is overlaid onto the local store of the forked
// Memory handed to that branch.
type Trigger struct {
	Action      string
	ForkingData map[string]any
}

// Triggers collects the transitions a node declares during its Post phase.
// The executor hands a fresh Triggers to every node execution; if Post
// queues nothing, the node implicitly fires DefaultAction with no forking
// data.
type Triggers struct {
	queued []Trigger
}

// Trigger queues an outgoing transition along the edge labeled action.
// forkingData may be nil. Calling Trigger multiple times - with distinct
// actions or repeating one - fans out one independent branch per call.
func (t *Triggers) Trigger(action string, forkingData map[string]any) {
	t.queued = append(t.queued, Trigger{Action: action, ForkingData: forkingData})
}

// Len returns the number of queued triggers.
func (t *Triggers) Len() int {
	return len(t.queued)
}
