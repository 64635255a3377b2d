// Package bundle assembles the LLM-ready markdown bundles: the full code
// summary (every selected file verbatim) and the compressed variant where
// marked files are replaced by cached AI summaries.
package bundle

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hayeah/codesum/state"
)

const (
	// CodeSummaryFilename holds the full-content bundle.
	CodeSummaryFilename = "code_summary.md"
	// CompressedSummaryFilename holds the bundle with AI-summarized files.
	CompressedSummaryFilename = "compressed_code_summary.md"
)

// Summarizer produces a condensed description of one source file.
type Summarizer interface {
	Summarize(ctx context.Context, relPath, content string) (string, error)
}

// Writer renders bundles for files under root and writes them into the
// summary directory.
type Writer struct {
	root  string
	store *state.Store
	log   *zap.SugaredLogger
}

// NewWriter creates a Writer for the project at root. logger may be nil.
func NewWriter(root string, store *state.Store, logger *zap.SugaredLogger) *Writer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Writer{root: root, store: store, log: logger}
}

// WriteCodeSummary renders the full bundle for the selection and writes it
// to code_summary.md. The rendered text is returned so the caller can put
// it on the clipboard. Unreadable files are skipped with a note.
func (w *Writer) WriteCodeSummary(sel *state.SelectionState) (string, error) {
	content := w.render(sel.SelectedPaths(), nil)
	if err := w.writeBundle(CodeSummaryFilename, content); err != nil {
		return "", err
	}
	return content, nil
}

// WriteCompressedSummary renders the bundle with compressed files replaced
// by AI summaries and writes it to compressed_code_summary.md. Summaries
// are cached by content hash, so unchanged files never hit the API twice.
func (w *Writer) WriteCompressedSummary(ctx context.Context, sel *state.SelectionState, summarizer Summarizer) (string, error) {
	summaries := make(map[string]string)
	for _, path := range sel.CompressedPaths() {
		rel := w.relPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			w.log.Warnw("skipping unreadable file", "path", rel, "error", err)
			continue
		}
		summary, err := w.summarize(ctx, summarizer, rel, string(data))
		if err != nil {
			return "", fmt.Errorf("failed to summarize %s: %w", rel, err)
		}
		summaries[path] = summary
	}

	content := w.render(sel.SelectedPaths(), summaries)
	if err := w.writeBundle(CompressedSummaryFilename, content); err != nil {
		return "", err
	}
	return content, nil
}

// render produces the markdown bundle: a structure diagram followed by one
// section per file. Files present in summaries get the summary text
// instead of their contents.
func (w *Writer) render(paths []string, summaries map[string]string) string {
	rels := make([]string, 0, len(paths))
	relOf := make(map[string]string, len(paths))
	for _, p := range paths {
		rel := w.relPath(p)
		rels = append(rels, rel)
		relOf[p] = rel
	}
	sort.Strings(rels)

	var sb strings.Builder
	sb.WriteString("# Code Summary\n\n")
	sb.WriteString("## Project Structure\n\n")
	sb.WriteString("```\n")
	sb.WriteString(TreeDiagram(filepath.Base(w.root), rels))
	sb.WriteString("```\n")

	sorted := append([]string(nil), paths...)
	sort.Slice(sorted, func(i, j int) bool { return relOf[sorted[i]] < relOf[sorted[j]] })

	for _, path := range sorted {
		rel := relOf[path]
		sb.WriteString("\n## " + rel + "\n\n")

		if summary, ok := summaries[path]; ok {
			sb.WriteString("*Summary (full contents omitted):*\n\n")
			sb.WriteString(strings.TrimRight(summary, "\n") + "\n")
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			w.log.Warnw("skipping unreadable file", "path", rel, "error", err)
			sb.WriteString("*Could not read file.*\n")
			continue
		}
		sb.WriteString("```" + langHint(rel) + "\n")
		sb.WriteString(strings.TrimRight(string(data), "\n") + "\n")
		sb.WriteString("```\n")
	}
	return sb.String()
}

// summaryMetadata is the cached summary for one file, keyed by the md5 of
// the source at the time it was summarized.
type summaryMetadata struct {
	SourceMD5 string `json:"source_md5"`
	Summary   string `json:"summary"`
}

// summarize returns the cached summary when the file is unchanged, else
// asks the summarizer and refreshes the cache.
func (w *Writer) summarize(ctx context.Context, summarizer Summarizer, rel, content string) (string, error) {
	sum := md5.Sum([]byte(content))
	hash := hex.EncodeToString(sum[:])

	metaPath := w.metadataPath(rel)
	if raw, err := os.ReadFile(metaPath); err == nil {
		var meta summaryMetadata
		if json.Unmarshal(raw, &meta) == nil && meta.SourceMD5 == hash {
			w.log.Debugw("summary cache hit", "path", rel)
			return meta.Summary, nil
		}
	}

	if summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}
	summary, err := summarizer.Summarize(ctx, rel, content)
	if err != nil {
		return "", err
	}

	meta := summaryMetadata{SourceMD5: hash, Summary: summary}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return summary, nil
	}
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o755); err == nil {
		if err := os.WriteFile(metaPath, data, 0o644); err != nil {
			w.log.Warnw("could not cache summary", "path", rel, "error", err)
		}
	}
	return summary, nil
}

// metadataPath mirrors the file's relative path under the summary
// directory: .summary_files/<rel dir>/<name>_metadata.json.
func (w *Writer) metadataPath(rel string) string {
	dir, name := filepath.Split(filepath.FromSlash(rel))
	return filepath.Join(w.store.Dir(), dir, name+"_metadata.json")
}

func (w *Writer) relPath(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (w *Writer) writeBundle(filename, content string) error {
	if err := w.store.EnsureDir(); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	target := filepath.Join(w.store.Dir(), filename)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

var langHints = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "jsx",
	".ts":    "typescript",
	".tsx":   "tsx",
	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".sh":    "bash",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".json":  "json",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".xml":   "xml",
	".sql":   "sql",
	".md":    "markdown",
	".proto": "protobuf",
}

// langHint picks the fenced-code language for a path, empty when unknown.
func langHint(rel string) string {
	return langHints[strings.ToLower(filepath.Ext(rel))]
}
