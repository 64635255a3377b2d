// Package openai is a minimal chat-completions client used for file
// summaries, README generation, and query-relevance ranking. The tool
// works fully offline; everything here is optional and degrades to
// inline error text rather than aborting a run.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	summaryMaxTokens   = 2500
	summaryTemperature = 0.3
	readmeMaxTokens    = 1500
	readmeTemperature  = 0.5
	rankMaxTokens      = 1000
	rankTemperature    = 0.1
)

const summarySystemPrompt = `You are an expert software engineer. Summarize the source file the user provides.
Describe the file's purpose, its key types and functions with their roles, and any
notable dependencies or side effects. Be concise and factual; use markdown with short
bullet points. Do not repeat the code.`

const readmeSystemPrompt = `You are an expert technical writer. The user provides a condensed summary of a
codebase. Write a complete README.md for the project: a short description, key
features, project structure, and basic usage. Output only the markdown document.`

const rankSystemPrompt = "You are a code analysis assistant that ranks files by relevance to a query."

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

// NewClient builds a Client. An empty apiKey yields a disabled client:
// Enabled reports false and calls return error text instead of results.
func NewClient(apiKey, model string, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
		log:     logger,
	}
}

// WithBaseURL points the client at a different endpoint (used by tests).
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatCompletion runs one system+user exchange and returns the reply text.
func (c *Client) chatCompletion(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("OpenAI client not available")
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Summarize produces a condensed description of one source file. API
// failures come back as inline error text so the bundle still renders.
func (c *Client) Summarize(ctx context.Context, relPath, content string) (string, error) {
	out, err := c.chatCompletion(ctx, summarySystemPrompt, content, summaryMaxTokens, summaryTemperature)
	if err != nil {
		c.log.Warnw("summary generation failed", "path", relPath, "error", err)
		return fmt.Sprintf("Error generating summary: %v", err), nil
	}
	return out, nil
}

// GenerateReadme turns a compressed code summary into README.md content.
// Failures yield an error document rather than an error.
func (c *Client) GenerateReadme(ctx context.Context, compressedSummary string) string {
	out, err := c.chatCompletion(ctx, readmeSystemPrompt, compressedSummary, readmeMaxTokens, readmeTemperature)
	if err != nil {
		c.log.Warnw("readme generation failed", "error", err)
		return fmt.Sprintf("# README Generation Error\n\n%v\n", err)
	}
	return out
}

// FileInfo is one candidate file offered for relevance ranking.
type FileInfo struct {
	Path    string `json:"path"`
	Preview string `json:"preview"`
}

// RankFiles orders relative paths by relevance to query. The model answers
// with a JSON array; paths it omits or invents are handled by appending
// the unranked remainder in the original order. Any failure returns the
// input order and an error.
func (c *Client) RankFiles(ctx context.Context, query string, files []FileInfo) ([]string, error) {
	original := make([]string, len(files))
	known := make(map[string]bool, len(files))
	for i, f := range files {
		original[i] = f.Path
		known[f.Path] = true
	}

	listing, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return original, fmt.Errorf("failed to encode file list: %w", err)
	}

	user := fmt.Sprintf(`I have a codebase with the following files. Please rank them by relevance to this query: %q

Files:
%s

Return ONLY a JSON array of file paths, ordered from most to least relevant.
Example: ["src/main.py", "src/utils.py", "README.md"]`, query, listing)

	reply, err := c.chatCompletion(ctx, rankSystemPrompt, user, rankMaxTokens, rankTemperature)
	if err != nil {
		return original, err
	}

	ranked, err := extractRanking(reply)
	if err != nil {
		return original, err
	}

	var out []string
	seen := make(map[string]bool)
	for _, p := range ranked {
		if known[p] && !seen[p] {
			out = append(out, p)
			seen[p] = true
		}
	}
	for _, p := range original {
		if !seen[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

// extractRanking pulls the first JSON array out of a model reply that may
// carry surrounding prose.
func extractRanking(reply string) ([]string, error) {
	start := strings.IndexByte(reply, '[')
	end := strings.LastIndexByte(reply, ']')
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in ranking reply")
	}
	var paths []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &paths); err != nil {
		return nil, fmt.Errorf("failed to decode ranking: %w", err)
	}
	return paths, nil
}
