package bundle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayeah/codesum/bundle"
	"github.com/hayeah/codesum/state"
)

// stubSummarizer records calls and returns a canned summary.
type stubSummarizer struct {
	calls int
}

func (s *stubSummarizer) Summarize(_ context.Context, relPath, _ string) (string, error) {
	s.calls++
	return "summary of " + relPath, nil
}

func fixture(t *testing.T) (string, *state.Store, *state.SelectionState) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.py":      "print('hello')\n",
		"sub/util.py":  "def util():\n    pass\n",
		"sub/notes.md": "# notes\n",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	sel := state.NewSelectionState()
	for rel := range files {
		sel.Select(filepath.Join(root, filepath.FromSlash(rel)))
	}
	return root, state.NewStore(root, nil), sel
}

func TestTreeDiagram(t *testing.T) {
	got := bundle.TreeDiagram("proj", []string{"a.py", "sub/b.py", "sub/deep/c.py"})
	want := "proj/\n" +
		"├── a.py\n" +
		"└── sub/\n" +
		"    ├── b.py\n" +
		"    └── deep/\n" +
		"        └── c.py\n"
	assert.Equal(t, want, got)
}

func TestWriteCodeSummary(t *testing.T) {
	root, store, sel := fixture(t)
	w := bundle.NewWriter(root, store, nil)

	content, err := w.WriteCodeSummary(sel)
	require.NoError(t, err)

	assert.Contains(t, content, "## Project Structure")
	assert.Contains(t, content, "## main.py")
	assert.Contains(t, content, "```python\nprint('hello')\n```")
	assert.Contains(t, content, "```markdown\n# notes\n```")

	// The bundle also lands on disk.
	written, err := os.ReadFile(filepath.Join(store.Dir(), bundle.CodeSummaryFilename))
	require.NoError(t, err)
	assert.Equal(t, content, string(written))
}

func TestWriteCodeSummarySkipsUnreadable(t *testing.T) {
	root, store, sel := fixture(t)
	sel.Select(filepath.Join(root, "gone.py"))
	w := bundle.NewWriter(root, store, nil)

	content, err := w.WriteCodeSummary(sel)
	require.NoError(t, err)
	assert.Contains(t, content, "## gone.py")
	assert.Contains(t, content, "*Could not read file.*")
}

func TestWriteCompressedSummary(t *testing.T) {
	root, store, sel := fixture(t)
	sel.ToggleCompressed(filepath.Join(root, "main.py"))

	w := bundle.NewWriter(root, store, nil)
	sum := &stubSummarizer{}

	content, err := w.WriteCompressedSummary(context.Background(), sel, sum)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.calls)
	assert.Contains(t, content, "summary of main.py")
	assert.NotContains(t, content, "print('hello')", "compressed file contents must be omitted")
	assert.Contains(t, content, "def util():", "non-compressed files keep full contents")
}

func TestSummaryCacheByContentHash(t *testing.T) {
	root, store, sel := fixture(t)
	mainPy := filepath.Join(root, "main.py")
	sel.ToggleCompressed(mainPy)

	w := bundle.NewWriter(root, store, nil)
	sum := &stubSummarizer{}

	_, err := w.WriteCompressedSummary(context.Background(), sel, sum)
	require.NoError(t, err)
	_, err = w.WriteCompressedSummary(context.Background(), sel, sum)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.calls, "unchanged file must reuse the cached summary")

	// Metadata file mirrors the source path under the summary dir.
	meta := filepath.Join(store.Dir(), "main.py_metadata.json")
	_, statErr := os.Stat(meta)
	assert.NoError(t, statErr)

	// Editing the file invalidates the cache.
	require.NoError(t, os.WriteFile(mainPy, []byte("print('changed')\n"), 0o644))
	_, err = w.WriteCompressedSummary(context.Background(), sel, sum)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.calls)
}
