package nodeflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemory_GlobalReadWrite tests basic global store access.
func TestMemory_GlobalReadWrite(t *testing.T) {
	mem := NewMemory(map[string]any{"seed": 1})

	v, ok := mem.Get("seed")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	mem.Set("answer", 42)
	assert.Equal(t, 42, mem.Value("answer"))
	assert.True(t, mem.Has("answer"))

	_, ok = mem.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, mem.Value("missing"))
}

// TestMemory_InitialStateCopied tests that the seed map is not retained.
func TestMemory_InitialStateCopied(t *testing.T) {
	initial := map[string]any{"k": "original"}
	mem := NewMemory(initial)

	initial["k"] = "mutated"
	assert.Equal(t, "original", mem.Value("k"))
}

// TestMemory_LocalShadowsGlobal tests local-then-global read resolution.
func TestMemory_LocalShadowsGlobal(t *testing.T) {
	mem := NewMemory(map[string]any{"key": "global"})
	mem.Local().Set("key", "local")

	assert.Equal(t, "local", mem.Value("key"))

	// Global store is untouched
	assert.Equal(t, "global", mem.GlobalSnapshot()["key"])
}

// TestMemory_SetClearsLocalShadow tests that a global write removes a stale
// local shadow so subsequent reads see the new global value.
func TestMemory_SetClearsLocalShadow(t *testing.T) {
	mem := NewMemory(nil)
	mem.Local().Set("key", "local")
	require.Equal(t, "local", mem.Value("key"))

	mem.Set("key", "global")

	assert.Equal(t, "global", mem.Value("key"))
	assert.False(t, mem.Local().Has("key"))
}

// TestMemory_DeleteRemovesBothScopes tests Delete across scopes.
func TestMemory_DeleteRemovesBothScopes(t *testing.T) {
	mem := NewMemory(map[string]any{"key": "global"})
	mem.Local().Set("key", "local")

	mem.Delete("key")

	assert.False(t, mem.Has("key"))
	assert.False(t, mem.Local().Has("key"))
}

// TestMemory_CloneSharesGlobal tests that clones write to the same global store.
func TestMemory_CloneSharesGlobal(t *testing.T) {
	mem := NewMemory(nil)
	fork := mem.Clone(nil)

	fork.Set("from_fork", true)

	assert.Equal(t, true, mem.Value("from_fork"))
}

// TestMemory_CloneIsolatesLocal tests that forked local stores are independent.
func TestMemory_CloneIsolatesLocal(t *testing.T) {
	mem := NewMemory(nil)
	mem.Local().Set("shared", []any{"a"})

	fork1 := mem.Clone(nil)
	fork2 := mem.Clone(nil)

	fork1.Local().Set("shared", "changed")

	assert.Equal(t, "changed", fork1.Value("shared"))
	assert.Equal(t, []any{"a"}, fork2.Value("shared"))
	assert.Equal(t, []any{"a"}, mem.Value("shared"))
}

// TestMemory_CloneDeepCopiesNestedValues tests that nested maps and slices in
// the local store are copied, not aliased.
func TestMemory_CloneDeepCopiesNestedValues(t *testing.T) {
	mem := NewMemory(nil)
	mem.Local().Set("cfg", map[string]any{"items": []any{1, 2}})

	fork := mem.Clone(nil)
	forkCfg := fork.Value("cfg").(map[string]any)
	forkCfg["items"].([]any)[0] = 99

	origCfg := mem.Value("cfg").(map[string]any)
	assert.Equal(t, 1, origCfg["items"].([]any)[0])
}

// TestMemory_CloneOverlaysForkingData tests the forking data overlay.
func TestMemory_CloneOverlaysForkingData(t *testing.T) {
	mem := NewMemory(nil)
	mem.Local().Set("kept", "base")
	mem.Local().Set("replaced", "base")

	fork := mem.Clone(map[string]any{"replaced": "fork", "added": "fork"})

	assert.Equal(t, "base", fork.Value("kept"))
	assert.Equal(t, "fork", fork.Value("replaced"))
	assert.Equal(t, "fork", fork.Value("added"))

	// Parent untouched
	assert.Equal(t, "base", mem.Value("replaced"))
	assert.False(t, mem.Has("added"))
}

// TestMemory_ForkingDataDeepCopied tests that the overlay map is copied.
func TestMemory_ForkingDataDeepCopied(t *testing.T) {
	data := map[string]any{"item": map[string]any{"n": 1}}
	mem := NewMemory(nil)
	fork := mem.Clone(data)

	data["item"].(map[string]any)["n"] = 99

	assert.Equal(t, 1, fork.Value("item").(map[string]any)["n"])
}

// TestMemory_LocalStore tests the explicit local accessor.
func TestMemory_LocalStore(t *testing.T) {
	mem := NewMemory(map[string]any{"g": 1})
	local := mem.Local()

	assert.Equal(t, 0, local.Len())

	local.Set("a", 1)
	local.Set("b", 2)
	assert.Equal(t, 2, local.Len())

	v, ok := local.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	// Local never reads through to global
	_, ok = local.Get("g")
	assert.False(t, ok)

	snap := local.Snapshot()
	local.Delete("a")
	assert.Equal(t, 1, local.Len())
	assert.Equal(t, 2, len(snap)) // snapshot unaffected
}

// TestMemory_GlobalSnapshot tests the snapshot copy semantics.
func TestMemory_GlobalSnapshot(t *testing.T) {
	mem := NewMemory(map[string]any{"a": 1})

	snap := mem.GlobalSnapshot()
	mem.Set("b", 2)

	assert.Equal(t, 1, len(snap))
	assert.Equal(t, 2, len(mem.GlobalSnapshot()))

	// Local writes never appear in the global snapshot
	mem.Local().Set("c", 3)
	assert.Equal(t, 2, len(mem.GlobalSnapshot()))
}
