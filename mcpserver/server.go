// Package mcpserver exposes query-driven code summaries over HTTP. Given
// a free-text query it ranks the project's files by relevance, bundles
// the top matches, and returns the bundle together with the chosen paths.
package mcpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/hayeah/codesum/bundle"
	"github.com/hayeah/codesum/openai"
	"github.com/hayeah/codesum/tree"
)

const (
	defaultMaxFiles = 10
	previewLen      = 500
)

// Ranker orders relative paths by relevance to a query. *openai.Client
// satisfies it; when no ranker is available the server falls back to
// fuzzy path matching.
type Ranker interface {
	Enabled() bool
	RankFiles(ctx context.Context, query string, files []openai.FileInfo) ([]string, error)
}

// Server handles MCP summarize requests for the project at root.
type Server struct {
	root     string
	fileTree *tree.Dir
	ranker   Ranker
	log      *zap.SugaredLogger
}

// New creates a Server over an already-built file tree. ranker may be nil.
func New(root string, fileTree *tree.Dir, ranker Ranker, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{root: root, fileTree: fileTree, ranker: ranker, log: logger}
}

// Echo builds the HTTP handler: GET /health, GET and POST /summarize.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/health", s.handleHealth)
	e.GET("/summarize", s.handleSummarizeGet)
	e.POST("/summarize", s.handleSummarizePost)
	return e
}

// ListenAndServe blocks serving on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	e := s.Echo()
	errc := make(chan error, 1)
	go func() {
		errc <- e.Start(addr)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return e.Shutdown(context.Background())
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "codesum-mcp",
	})
}

type summarizeRequest struct {
	Query    string `json:"query" query:"query"`
	MaxFiles int    `json:"max_files" query:"max_files"`
}

type summarizeResponse struct {
	Summary       string   `json:"summary"`
	SelectedFiles []string `json:"selected_files"`
}

func (s *Server) handleSummarizeGet(c echo.Context) error {
	return s.handleSummarize(c)
}

func (s *Server) handleSummarizePost(c echo.Context) error {
	return s.handleSummarize(c)
}

func (s *Server) handleSummarize(c echo.Context) error {
	var req summarizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter is required")
	}
	if req.MaxFiles <= 0 {
		req.MaxFiles = defaultMaxFiles
	}

	selected := s.selectRelevantFiles(c.Request().Context(), req.Query, req.MaxFiles)
	summary := s.renderSummary(req.Query, selected)

	return c.JSON(http.StatusOK, summarizeResponse{
		Summary:       summary,
		SelectedFiles: selected,
	})
}

// selectRelevantFiles ranks all tracked files against the query and keeps
// the top maxFiles. The LLM ranker is preferred; fuzzy matching on the
// relative paths is the offline fallback.
func (s *Server) selectRelevantFiles(ctx context.Context, query string, maxFiles int) []string {
	paths := tree.CollectFiles(s.fileTree, "")
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil
	}

	ranked := s.rank(ctx, query, paths)
	if len(ranked) > maxFiles {
		ranked = ranked[:maxFiles]
	}
	return ranked
}

func (s *Server) rank(ctx context.Context, query string, paths []string) []string {
	if s.ranker != nil && s.ranker.Enabled() {
		if ranked, err := s.rankWithLLM(ctx, query, paths); err == nil {
			return ranked
		} else {
			s.log.Warnw("LLM ranking failed, falling back to fuzzy match", "error", err)
		}
	}
	return s.rankFuzzy(query, paths)
}

func (s *Server) rankWithLLM(ctx context.Context, query string, paths []string) ([]string, error) {
	var files []openai.FileInfo
	byRel := make(map[string]string, len(paths))
	for _, p := range paths {
		rel := s.relPath(p)
		byRel[rel] = p
		files = append(files, openai.FileInfo{Path: rel, Preview: preview(p)})
	}

	ranked, err := s.ranker.RankFiles(ctx, query, files)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(ranked))
	for _, rel := range ranked {
		if abs, ok := byRel[rel]; ok {
			out = append(out, abs)
		}
	}
	return out, nil
}

// rankFuzzy orders paths by fuzzy match of the query against the relative
// path, with unmatched paths appended in their original order.
func (s *Server) rankFuzzy(query string, paths []string) []string {
	rels := make([]string, len(paths))
	for i, p := range paths {
		rels[i] = s.relPath(p)
	}

	matches := fuzzy.Find(query, rels)
	out := make([]string, 0, len(paths))
	seen := make(map[int]bool, len(matches))
	for _, m := range matches {
		out = append(out, paths[m.Index])
		seen[m.Index] = true
	}
	for i, p := range paths {
		if !seen[i] {
			out = append(out, p)
		}
	}
	return out
}

// renderSummary bundles the selected files: structure diagram first, then
// each file's contents fenced with a language hint.
func (s *Server) renderSummary(query string, selected []string) string {
	if len(selected) == 0 {
		return "No relevant files found for the query."
	}

	rels := make([]string, 0, len(selected))
	for _, p := range selected {
		rels = append(rels, s.relPath(p))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Code Summary for Query: %s\n\n", query)
	fmt.Fprintf(&sb, "Project Root: %s\n\n", s.root)
	sb.WriteString("Project Structure:\n```\n")
	sb.WriteString(bundle.TreeDiagram(filepath.Base(s.root), rels))
	sb.WriteString("```\n\n---\n")

	for i, path := range selected {
		fmt.Fprintf(&sb, "\n## File: %s\n", rels[i])
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(&sb, "Error reading file: %v\n\n---\n", err)
			continue
		}
		lang := strings.TrimPrefix(filepath.Ext(path), ".")
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n---\n", lang, strings.TrimRight(string(data), "\n"))
	}
	return sb.String()
}

func (s *Server) relPath(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// preview returns the first 500 bytes of the file for ranking context.
func preview(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	if len(data) > previewLen {
		data = data[:previewLen]
	}
	return string(data)
}
