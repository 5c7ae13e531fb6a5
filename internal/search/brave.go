// Package search implements the external web search client (C9's search
// step): a thin REST wrapper over the Brave Search API, using a
// context-aware http.Client request pattern.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// searchURL is a var, not a const, so tests can point the client at a
// local httptest.Server.
var searchURL = "https://api.search.brave.com/res/v1/web/search"

// Result is a single web search hit.
type Result struct {
	URL         string
	Title       string
	Description string
}

// Snippet joins the non-empty title and description.
func (r Result) Snippet() string {
	parts := make([]string, 0, 2)
	if t := strings.TrimSpace(r.Title); t != "" {
		parts = append(parts, t)
	}
	if d := strings.TrimSpace(r.Description); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, "\n")
}

// Client is a Brave Search API client.
type Client struct {
	http       *http.Client
	apiKey     string
	maxResults int
}

// NewClient builds a Client. An empty apiKey leaves the client unconfigured;
// IsConfigured reports false and Search returns no results.
func NewClient(apiKey string, timeout time.Duration, maxResults int) *Client {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		maxResults: maxResults,
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Search issues a web search. count <= 0 falls back to the client's default
// max results. An unconfigured client always returns (nil, nil).
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if !c.IsConfigured() {
		return nil, nil
	}
	if count <= 0 {
		count = c.maxResults
	}

	req, err := c.buildRequest(ctx, query, count)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search returned status %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				URL         string `json:"url"`
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding brave search response: %w", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, Result{URL: r.URL, Title: r.Title, Description: r.Description})
	}
	return results, nil
}

// CheckHealth probes the search API with a minimal query and reports
// reachability, a human-readable message, and latency in milliseconds.
func (c *Client) CheckHealth(ctx context.Context) (ok bool, message string, latencyMS *int) {
	if !c.IsConfigured() {
		return false, "brave API key not configured", nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(probeCtx, "test", 1)
	if err != nil {
		return false, err.Error(), nil
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err.Error(), nil
	}
	defer resp.Body.Close()
	elapsed := int(time.Since(start).Milliseconds())

	switch resp.StatusCode {
	case http.StatusOK:
		return true, "brave search is reachable", &elapsed
	case http.StatusUnauthorized:
		return false, "brave API key is invalid", nil
	default:
		return false, fmt.Sprintf("brave search returned status %d", resp.StatusCode), nil
	}
}

func (c *Client) buildRequest(ctx context.Context, query string, count int) (*http.Request, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("count", fmt.Sprintf("%d", count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building brave search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)
	return req, nil
}
