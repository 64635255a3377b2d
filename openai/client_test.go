package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayeah/codesum/openai"
)

// fakeAPI serves canned chat completions and records the last request.
func fakeAPI(t *testing.T, reply string, status int) (*httptest.Server, *map[string]any) {
	t.Helper()
	lastReq := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&lastReq))

		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		}
		if status != http.StatusOK {
			resp = map[string]any{"error": map[string]any{"message": "boom"}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReq
}

func TestEnabled(t *testing.T) {
	assert.False(t, openai.NewClient("", "gpt-4o", nil).Enabled())
	assert.True(t, openai.NewClient("k", "gpt-4o", nil).Enabled())
}

func TestSummarize(t *testing.T) {
	srv, lastReq := fakeAPI(t, "A parser for widgets.", http.StatusOK)
	c := openai.NewClient("test-key", "gpt-4o", nil).WithBaseURL(srv.URL)

	out, err := c.Summarize(context.Background(), "main.py", "print('x')")
	require.NoError(t, err)
	assert.Equal(t, "A parser for widgets.", out)
	assert.Equal(t, "gpt-4o", (*lastReq)["model"])
}

func TestSummarizeAPIFailureInlinesError(t *testing.T) {
	srv, _ := fakeAPI(t, "", http.StatusInternalServerError)
	c := openai.NewClient("test-key", "gpt-4o", nil).WithBaseURL(srv.URL)

	out, err := c.Summarize(context.Background(), "main.py", "print('x')")
	require.NoError(t, err, "API failures degrade to inline text, not errors")
	assert.Contains(t, out, "Error generating summary:")
}

func TestGenerateReadmeFailureDocument(t *testing.T) {
	c := openai.NewClient("", "gpt-4o", nil)
	out := c.GenerateReadme(context.Background(), "summary")
	assert.Contains(t, out, "# README Generation Error")
}

func TestRankFiles(t *testing.T) {
	reply := `Here you go: ["b.py", "a.py"] hope that helps`
	srv, _ := fakeAPI(t, reply, http.StatusOK)
	c := openai.NewClient("test-key", "gpt-4o", nil).WithBaseURL(srv.URL)

	files := []openai.FileInfo{
		{Path: "a.py", Preview: "alpha"},
		{Path: "b.py", Preview: "beta"},
		{Path: "c.py", Preview: "gamma"},
	}
	got, err := c.RankFiles(context.Background(), "beta things", files)
	require.NoError(t, err)
	// Ranked files first, unranked remainder appended in input order.
	assert.Equal(t, []string{"b.py", "a.py", "c.py"}, got)
}

func TestRankFilesIgnoresInventedPaths(t *testing.T) {
	srv, _ := fakeAPI(t, `["made/up.py", "a.py"]`, http.StatusOK)
	c := openai.NewClient("test-key", "gpt-4o", nil).WithBaseURL(srv.URL)

	got, err := c.RankFiles(context.Background(), "q", []openai.FileInfo{{Path: "a.py"}, {Path: "b.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, got)
}

func TestRankFilesBadReplyFallsBack(t *testing.T) {
	srv, _ := fakeAPI(t, "no array here", http.StatusOK)
	c := openai.NewClient("test-key", "gpt-4o", nil).WithBaseURL(srv.URL)

	got, err := c.RankFiles(context.Background(), "q", []openai.FileInfo{{Path: "a.py"}, {Path: "b.py"}})
	assert.Error(t, err)
	assert.Equal(t, []string{"a.py", "b.py"}, got, "input order is the fallback")
}
