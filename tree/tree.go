// Package tree builds an immutable snapshot of a project directory and
// flattens it into displayable rows. Collapse and selection state live
// outside the tree, keyed by row path or absolute file path.
package tree

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Node is either a Dir or a File.
type Node interface {
	isNode()
}

// Dir is a directory node. Entries map a single path segment to its node.
type Dir struct {
	Entries map[string]Node
}

// File is a leaf holding the file's absolute path.
type File struct {
	AbsPath string
}

func (*Dir) isNode()  {}
func (*File) isNode() {}

// NewDir returns an empty directory node.
func NewDir() *Dir {
	return &Dir{Entries: make(map[string]Node)}
}

// Excluder is the ignore predicate consulted during the walk.
type Excluder interface {
	Excluded(relPath string, isDir bool) bool
}

// Build walks rootPath once and returns the tree of non-excluded entries.
// Directories always get a node, even when they end up empty. Unreadable
// paths are skipped, never fatal.
func Build(rootPath string, exc Excluder) (*Dir, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	root := NewDir()
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Permission denied or vanished entry: skip it.
			if d != nil && d.IsDir() && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if path == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if exc != nil && exc.Excluded(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			root.ensureDir(rel)
		} else {
			root.insertFile(rel, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return root, nil
}

// ensureDir creates directory nodes down to relPath.
func (d *Dir) ensureDir(relPath string) *Dir {
	cur := d
	for _, seg := range strings.Split(relPath, "/") {
		next, ok := cur.Entries[seg].(*Dir)
		if !ok {
			next = NewDir()
			cur.Entries[seg] = next
		}
		cur = next
	}
	return cur
}

// insertFile places a file leaf at relPath.
func (d *Dir) insertFile(relPath, absPath string) {
	parent := d
	name := relPath
	if idx := strings.LastIndexByte(relPath, '/'); idx >= 0 {
		parent = d.ensureDir(relPath[:idx])
		name = relPath[idx+1:]
	}
	parent.Entries[name] = &File{AbsPath: absPath}
}

// lookupDir resolves a row path to its directory node. An empty rowPath
// resolves to the root.
func (d *Dir) lookupDir(rowPath string) (*Dir, bool) {
	if rowPath == "" || rowPath == "." {
		return d, true
	}
	cur := d
	for _, seg := range strings.Split(rowPath, "/") {
		next, ok := cur.Entries[seg].(*Dir)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// CollectFiles returns the absolute paths of every file at or below the
// folder identified by rowPath, unordered.
func CollectFiles(root *Dir, rowPath string) []string {
	dir, ok := root.lookupDir(rowPath)
	if !ok {
		return nil
	}
	var out []string
	collectFiles(dir, &out)
	return out
}

func collectFiles(d *Dir, out *[]string) {
	for _, node := range d.Entries {
		switch n := node.(type) {
		case *File:
			*out = append(*out, n.AbsPath)
		case *Dir:
			collectFiles(n, out)
		}
	}
}

// DescendantFolders returns the row paths of every folder strictly below
// the folder identified by rowPath, sorted.
func DescendantFolders(root *Dir, rowPath string) []string {
	dir, ok := root.lookupDir(rowPath)
	if !ok {
		return nil
	}
	var out []string
	collectFolders(dir, rowPath, &out)
	sort.Strings(out)
	return out
}

func collectFolders(d *Dir, prefix string, out *[]string) {
	for name, node := range d.Entries {
		sub, ok := node.(*Dir)
		if !ok {
			continue
		}
		rp := name
		if prefix != "" {
			rp = prefix + "/" + name
		}
		*out = append(*out, rp)
		collectFolders(sub, rp, out)
	}
}
