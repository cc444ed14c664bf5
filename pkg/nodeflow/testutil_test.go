package nodeflow

import (
	"context"
	"sync"
)

// testCtx creates a Context for tests with a discard-free default logger.
func testCtx() Context {
	return NewContext(context.Background())
}

// tracker records node executions, safe for concurrent branches.
type tracker struct {
	mu    sync.Mutex
	order []string
}

func (tr *tracker) record(name string) {
	tr.mu.Lock()
	tr.order = append(tr.order, name)
	tr.mu.Unlock()
}

func (tr *tracker) executed() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.order...)
}

// trackingNode records its execution and optionally fires a fixed action.
func trackingNode(name string, tr *tracker, actions ...string) Node {
	return NewNode(Funcs{
		Post: func(ctx Context, mem *Memory, prepRes, execRes any, out *Triggers) error {
			tr.record(name)
			for _, action := range actions {
				out.Trigger(action, nil)
			}
			return nil
		},
	})
}

// failingNode fails Exec with the given error on every attempt.
func failingNode(err error) Node {
	return NewNode(Funcs{
		Exec: func(ctx Context, prepRes any) (any, error) {
			return nil, err
		},
	})
}

// panicNode panics during Exec with the given value.
func panicNode(value any) Node {
	return NewNode(Funcs{
		Exec: func(ctx Context, prepRes any) (any, error) {
			panic(value)
		},
	})
}

// setNode writes key=value to the global store.
func setNode(key string, value any) Node {
	return NewNode(Funcs{
		Post: func(ctx Context, mem *Memory, prepRes, execRes any, out *Triggers) error {
			mem.Set(key, value)
			return nil
		},
	})
}
