// Package websearch implements the external web search collaborator used by
// the grounding retriever alongside the knowledge store.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 10 * time.Second

// Result is one hit returned by the search collaborator.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Searcher is the collaborator contract the retriever depends on.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

// Client queries an HTTP search API. A client constructed without
// credentials degrades to returning empty results rather than failing.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewClient creates a new search client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether the client has endpoint and credentials.
func (c *Client) Configured() bool {
	return c.endpoint != "" && c.apiKey != ""
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search queries the collaborator. Without credentials it returns an empty
// list; transport and decode failures surface as errors for the caller's
// retry policy.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if !c.Configured() {
		return []Result{}, nil
	}
	if query == "" {
		return []Result{}, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(maxResults))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := decoded.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
