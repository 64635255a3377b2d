package state_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hayeah/codesum/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*state.Store, string) {
	t.Helper()
	base := t.TempDir()
	return state.NewStore(base, nil), base
}

func touch(t *testing.T, base, name string) string {
	t.Helper()
	p := filepath.Join(base, name)
	require.NoError(t, os.WriteFile(p, []byte("content"), 0o644))
	return p
}

func TestSelectionInvariant(t *testing.T) {
	st := state.NewSelectionState()

	st.ToggleCompressed("/a")
	assert.True(t, st.Selected["/a"], "compressing must auto-select")
	assert.True(t, st.Compressed["/a"])

	st.Toggle("/a")
	assert.False(t, st.Selected["/a"])
	assert.False(t, st.Compressed["/a"], "deselecting must clear the compressed mark")

	st.Select("/b")
	st.ToggleCompressed("/b")
	st.ToggleCompressed("/b")
	assert.True(t, st.Selected["/b"], "unmarking compressed keeps the file selected")
	assert.False(t, st.Compressed["/b"])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, base := newStore(t)
	a := touch(t, base, "a.go")
	b := touch(t, base, "b.go")

	st := state.NewSelectionState()
	st.Select(a)
	st.Select(b)
	st.ToggleCompressed(b)

	require.NoError(t, store.Save(st))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, st.SelectedPaths(), got.SelectedPaths())
	assert.Equal(t, st.CompressedPaths(), got.CompressedPaths())
}

func TestLoadLegacyArrayForm(t *testing.T) {
	store, base := newStore(t)
	a := touch(t, base, "a.go")

	require.NoError(t, store.EnsureDir())
	legacy, err := json.Marshal([]string{a})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "previous_selection.json"), legacy, 0o644))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{a}, st.SelectedPaths())
	assert.Empty(t, st.CompressedPaths())
}

func TestLoadPrunesStalePathsIdempotently(t *testing.T) {
	store, base := newStore(t)
	keep := touch(t, base, "keep.go")
	gone := filepath.Join(base, "gone.go")

	st := state.NewSelectionState()
	st.Select(keep)
	st.Select(gone)
	st.ToggleCompressed(gone)
	require.NoError(t, store.Save(st))

	first, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, first.SelectedPaths())
	assert.Empty(t, first.CompressedPaths())

	// The pruned result was rewritten: the file no longer mentions the
	// stale path, and a second load changes nothing.
	selFile := filepath.Join(store.Dir(), "previous_selection.json")
	raw, err := os.ReadFile(selFile)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "gone.go")

	second, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, first.SelectedPaths(), second.SelectedPaths())

	after, err := os.ReadFile(selFile)
	require.NoError(t, err)
	assert.Equal(t, raw, after)
}

func TestLoadCorruptFile(t *testing.T) {
	store, _ := newStore(t)
	require.NoError(t, store.EnsureDir())
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "previous_selection.json"), []byte("{nope"), 0o644))

	st, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.SelectedPaths())
}

func TestCollapsedRoundTrip(t *testing.T) {
	store, _ := newStore(t)

	empty, err := store.LoadCollapsed()
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.SaveCollapsed(map[string]bool{"sub": true, "sub/deep": true}))

	got, err := store.LoadCollapsed()
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"sub": true, "sub/deep": true}, got)
}

func TestConfigCRUD(t *testing.T) {
	store, base := newStore(t)
	a := touch(t, base, "a.go")

	st := state.NewSelectionState()
	st.Select(a)
	st.ToggleCompressed(a)

	require.NoError(t, store.SaveConfig("work", st))
	assert.Equal(t, []string{"work"}, store.ConfigNames())

	loaded := store.LoadConfig("work")
	require.NotNil(t, loaded)
	assert.Equal(t, []string{a}, loaded.SelectedPaths())
	assert.Equal(t, []string{a}, loaded.CompressedPaths())

	assert.Nil(t, store.LoadConfig("missing"))

	assert.True(t, store.RenameConfig("work", "play"))
	assert.Nil(t, store.LoadConfig("work"))
	require.NotNil(t, store.LoadConfig("play"))

	assert.True(t, store.DeleteConfig("play"))
	assert.False(t, store.DeleteConfig("play"))
	assert.Empty(t, store.ConfigNames())
}

func TestRenameConfigCollision(t *testing.T) {
	store, base := newStore(t)
	a := touch(t, base, "a.go")
	b := touch(t, base, "b.go")

	stA := state.NewSelectionState()
	stA.Select(a)
	stB := state.NewSelectionState()
	stB.Select(b)

	require.NoError(t, store.SaveConfig("one", stA))
	require.NoError(t, store.SaveConfig("two", stB))

	assert.False(t, store.RenameConfig("one", "two"), "renaming onto an existing name must fail")
	assert.False(t, store.RenameConfig("ghost", "three"), "renaming a missing config must fail")

	// Both configs are unchanged.
	assert.Equal(t, []string{a}, store.LoadConfig("one").SelectedPaths())
	assert.Equal(t, []string{b}, store.LoadConfig("two").SelectedPaths())
}
