package tree_test

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/hayeah/codesum/tree"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFixture creates a.py at the root, sub/ with two
// entries, and sub2/ holding a single file.
func buildFixture(t *testing.T) (string, *tree.Dir) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "a.py", "a")
	writeFile(t, root, "sub/b.py", "b")
	writeFile(t, root, "sub/c.py", "c")
	writeFile(t, root, "sub2/only.txt", "only")

	tr, err := tree.Build(root, nil)
	require.NoError(t, err)
	return root, tr
}

func rowKeys(rows []tree.Row) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.DisplayName)
	}
	return out
}

func TestFlattenOrderAndElision(t *testing.T) {
	_, tr := buildFixture(t)

	rows := tree.Flatten(tr, nil)

	assert.Equal(t, []string{"a.py", "sub/", "sub/b.py", "sub/c.py", "sub2/only.txt"}, rowKeys(rows))

	// sub2 is elided: its single file is a file row, no folder row emitted.
	last := rows[len(rows)-1]
	assert.False(t, last.IsFolder)
	assert.Equal(t, "sub2/only.txt", last.RowPath)

	sub := rows[1]
	assert.True(t, sub.IsFolder)
	assert.Equal(t, "sub", sub.RowPath)
	assert.Empty(t, sub.AbsPath)
}

func TestFlattenCollapsed(t *testing.T) {
	_, tr := buildFixture(t)

	expanded := tree.Flatten(tr, nil)
	collapsed := tree.Flatten(tr, map[string]bool{"sub": true})

	// Collapsing sub removes exactly its descendants; sub's own row stays.
	var want []string
	for _, r := range expanded {
		if r.RowPath == "sub" || (len(r.RowPath) <= 4 || r.RowPath[:4] != "sub/") {
			want = append(want, r.DisplayName)
		}
	}
	assert.Equal(t, want, rowKeys(collapsed))
	assert.Equal(t, []string{"a.py", "sub/", "sub2/only.txt"}, rowKeys(collapsed))
}

func TestFlattenIgnoreConsistency(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "a")
	writeFile(t, root, "build/out.o", "o")
	writeFile(t, root, "sub/b.py", "b")

	tr, err := tree.Build(root, excludeNames{"build": true})
	require.NoError(t, err)

	rows := tree.Flatten(tr, nil)
	got := tree.FilePaths(rows)
	sort.Strings(got)

	want := []string{
		filepath.Join(root, "a.py"),
		filepath.Join(root, "sub", "b.py"),
	}
	sort.Strings(want)
	assert.Equal(t, want, got, "flattening must lose no non-excluded file")
}

func TestFlattenFilesBeforeFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "zzz.txt", "z")
	writeFile(t, root, "aaa/inner1.txt", "1")
	writeFile(t, root, "aaa/inner2.txt", "2")

	tr, err := tree.Build(root, nil)
	require.NoError(t, err)

	rows := tree.Flatten(tr, nil)
	assert.Equal(t, []string{"zzz.txt", "aaa/", "aaa/inner1.txt", "aaa/inner2.txt"}, rowKeys(rows))
}
