package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnconfiguredClientReturnsNoResults(t *testing.T) {
	c := NewClient("", time.Second, 3)
	assert.False(t, c.IsConfigured())

	results, err := c.Search(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Nil(t, results)

	ok, msg, latency := c.CheckHealth(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "brave API key not configured", msg)
	assert.Nil(t, latency)
}

func TestResultSnippetJoinsTitleAndDescription(t *testing.T) {
	r := Result{Title: "  Hello  ", Description: "World"}
	assert.Equal(t, "Hello\nWorld", r.Snippet())

	r2 := Result{Title: "", Description: "  "}
	assert.Equal(t, "", r2.Snippet())
}

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Subscription-Token"))
		w.WriteHeader(status)
		if body != "" {
			w.Write([]byte(body))
		}
	}))
}

func TestSearchParsesResultsAndSkipsEmptyURL(t *testing.T) {
	payload := map[string]any{
		"web": map[string]any{
			"results": []map[string]string{
				{"url": "https://a.example", "title": "A", "description": "desc a"},
				{"url": "", "title": "skip me"},
			},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	srv := newTestServer(t, http.StatusOK, string(body))
	defer srv.Close()

	originalURL := searchURL
	searchURL = srv.URL
	defer func() { searchURL = originalURL }()

	c := &Client{http: srv.Client(), apiKey: "test-key", maxResults: 3}

	results, err := c.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a.example", results[0].URL)
}
