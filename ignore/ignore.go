// Package ignore decides which paths are hidden from the file tree. It
// layers an explicit name list, gitignore-style pattern files found
// anywhere under the root, and a text/binary content check into a single
// exclusion predicate.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultNames are path segments that are always excluded, along with
// everything beneath them. Glob entries match single segments.
var DefaultNames = []string{
	".git", "venv", ".venv", ".summary_files", "__pycache__",
	".vscode", ".idea", "node_modules", "build", "dist", "target",
	".DS_Store", ".env",
	"*.pyc", "*.pyo", "*.egg-info",
	"*.o", "*.so", "*.dylib", "*.dll", "*.exe", "*.class",
}

// Resolver combines all exclusion layers for a single root directory.
type Resolver struct {
	root    string
	names   []string
	matcher gitignore.Matcher
}

// NewResolver builds a Resolver for rootPath. extraNames are appended to
// DefaultNames (typically loaded from the custom ignore file). Pattern
// files are read from every subdirectory; the gitignore matcher rewrites
// each pattern relative to the directory that declared it.
func NewResolver(rootPath string, extraNames []string) (*Resolver, error) {
	fs := osfs.New(rootPath)
	patterns, err := gitignore.ReadPatterns(fs, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to read ignore patterns: %w", err)
	}

	names := make([]string, 0, len(DefaultNames)+len(extraNames))
	names = append(names, DefaultNames...)
	names = append(names, extraNames...)

	return &Resolver{
		root:    rootPath,
		names:   names,
		matcher: gitignore.NewMatcher(patterns),
	}, nil
}

// Excluded reports whether the path at relPath (slash or native separators,
// relative to the resolver's root) should be hidden. Files that cannot be
// read or are not classified as text are excluded.
func (r *Resolver) Excluded(relPath string, isDir bool) bool {
	rel := filepath.ToSlash(relPath)
	if rel == "." || rel == "" {
		return false
	}

	segments := strings.Split(rel, "/")
	for _, seg := range segments {
		for _, name := range r.names {
			if matchName(name, seg) {
				return true
			}
		}
	}

	if r.matcher.Match(segments, isDir) {
		return true
	}

	if !isDir {
		return !IsTextFile(filepath.Join(r.root, filepath.FromSlash(rel)))
	}
	return false
}

// matchName matches one ignore-list entry against a single path segment.
func matchName(name, segment string) bool {
	if strings.ContainsAny(name, "*?[") {
		ok, err := path.Match(name, segment)
		return err == nil && ok
	}
	return name == segment
}

// CustomIgnoreFilename is the per-project file whose entries are appended
// to the default ignore-name list.
const CustomIgnoreFilename = "custom_ignore.txt"

// LoadCustomNames reads extra ignore names from filePath, one per line.
// Blank lines and #-comments are skipped. A missing file yields no names.
func LoadCustomNames(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open custom ignore file: %w", err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read custom ignore file: %w", err)
	}
	return names, nil
}
