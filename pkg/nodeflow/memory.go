package nodeflow

import "sync"

// globalStore is the run-wide shared store. All Memory views created during
// one run hold the same instance by pointer.
//
// The mutex protects the map structure so concurrent branches cannot corrupt
// it. It does not arbitrate key-level write-write races between branches -
// callers fanning out concurrent writers should pre-allocate distinct slots
// (see the fanout example).
type globalStore struct {
	mu   sync.RWMutex
	data map[string]any
}

// Memory is the two-scope state container passed to node lifecycle methods.
//
// Reads resolve against the branch-local store first and fall back to the
// global store. Writes through Set always target the global store; use
// Local() for branch-scoped writes. A Memory view is created per run and
// forked per trigger via Clone.
type Memory struct {
	global *globalStore
	local  map[string]any
}

// NewMemory creates a Memory seeded with the given initial global state.
// A nil map is treated as empty.
func NewMemory(initial map[string]any) *Memory {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &Memory{
		global: &globalStore{data: data},
		local:  make(map[string]any),
	}
}

// Get resolves key in the local store first, then the global store.
// The second return reports whether the key was found in either scope.
func (m *Memory) Get(key string) (any, bool) {
	if v, ok := m.local[key]; ok {
		return v, true
	}
	m.global.mu.RLock()
	defer m.global.mu.RUnlock()
	v, ok := m.global.data[key]
	return v, ok
}

// Value returns the value for key, or nil if it is absent from both scopes.
// Use Get when absence must be distinguished from a stored nil.
func (m *Memory) Value(key string) any {
	v, _ := m.Get(key)
	return v
}

// Has reports whether key exists in either scope.
func (m *Memory) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set writes key to the global store. If the key is shadowed in the local
// store, the local copy is removed so subsequent reads see the new global
// value rather than a stale branch-local one.
func (m *Memory) Set(key string, value any) {
	delete(m.local, key)
	m.global.mu.Lock()
	m.global.data[key] = value
	m.global.mu.Unlock()
}

// Delete removes key from both scopes.
func (m *Memory) Delete(key string) {
	delete(m.local, key)
	m.global.mu.Lock()
	delete(m.global.data, key)
	m.global.mu.Unlock()
}

// Local returns an accessor scoped exclusively to this branch's local store.
func (m *Memory) Local() LocalStore {
	return LocalStore{data: m.local}
}

// Clone creates a forked view for a downstream branch: the global store is
// shared by reference, the local store is deep-copied and then overlaid with
// a deep copy of forkingData. Mutating one fork's local store never affects
// its siblings.
func (m *Memory) Clone(forkingData map[string]any) *Memory {
	local := make(map[string]any, len(m.local)+len(forkingData))
	for k, v := range m.local {
		local[k] = deepCopyValue(v)
	}
	for k, v := range forkingData {
		local[k] = deepCopyValue(v)
	}
	return &Memory{global: m.global, local: local}
}

// GlobalSnapshot returns a shallow copy of the global store, suitable for
// serialization after a run completes.
func (m *Memory) GlobalSnapshot() map[string]any {
	m.global.mu.RLock()
	defer m.global.mu.RUnlock()
	out := make(map[string]any, len(m.global.data))
	for k, v := range m.global.data {
		out[k] = v
	}
	return out
}

// LocalStore provides explicit access to a branch's local store.
// It is a view: writes are visible to every holder of the same Memory.
// Local stores are branch-exclusive by construction and need no locking.
type LocalStore struct {
	data map[string]any
}

// Get returns the value for key in the local store only.
func (l LocalStore) Get(key string) (any, bool) {
	v, ok := l.data[key]
	return v, ok
}

// Set writes key to the local store only, leaving the global store untouched.
func (l LocalStore) Set(key string, value any) {
	l.data[key] = value
}

// Delete removes key from the local store only.
func (l LocalStore) Delete(key string) {
	delete(l.data, key)
}

// Has reports whether key exists in the local store.
func (l LocalStore) Has(key string) bool {
	_, ok := l.data[key]
	return ok
}

// Len returns the number of keys in the local store.
func (l LocalStore) Len() int {
	return len(l.data)
}

// Snapshot returns a shallow copy of the local store.
func (l LocalStore) Snapshot() map[string]any {
	out := make(map[string]any, len(l.data))
	for k, v := range l.data {
		out[k] = v
	}
	return out
}

// deepCopyValue copies maps and slices recursively; other values (including
// pointers to caller-owned structs) are copied by reference.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = deepCopyValue(x)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = deepCopyValue(x)
		}
		return out
	default:
		return v
	}
}
