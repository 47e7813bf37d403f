// Package websearch is the HTTP client for the web search provider
// (Tavily-compatible API).
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/metrics"
	"github.com/orchardai/orchestrator/internal/tracing"
)

// Config holds the search provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Result is one web search hit.
type Result struct {
	Title   string
	URL     string
	Content string
}

// Client talks to the search provider over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a web search client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.tavily.com"
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Search runs a web search and returns up to limit results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	url := c.baseURL + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("web_search").Inc()
		return nil, fmt.Errorf("call search provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ExternalCallFailures.WithLabelValues("web_search").Inc()
		return nil, fmt.Errorf("search provider returned status %d", resp.StatusCode)
	}

	var sr struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	var out []Result
	for _, r := range sr.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Content: r.Content})
		if len(out) == limit {
			break
		}
	}

	c.logger.Debug("Web search", zap.String("query", query), zap.Int("results", len(out)))
	return out, nil
}
