// Package knowledge is the HTTP client for the graph search service. The
// graph stores orchard pest-and-disease facts as entities, relationships,
// raw passages (episodes), and community summaries; each is searchable as
// its own component.
package knowledge

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
	"github.com/orchardai/orchestrator/internal/models"
	"github.com/orchardai/orchestrator/internal/tracing"
)

// Config holds the graph service connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// ComponentResult is the content and citations one component search returned.
// Citations are positional with Contents.
type ComponentResult struct {
	Contents  []string
	Citations []models.Citation
}

// Client talks to the graph search service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a graph search client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type searchRequest struct {
	Query     string `json:"query"`
	Component string `json:"component"`
	Limit     int    `json:"limit"`
}

type searchResponse struct {
	Results []struct {
		Content string `json:"content"`
		Source  string `json:"source"`
	} `json:"results"`
}

// SearchComponent runs a scoped search against one graph component.
// Results with empty content are dropped; citations are deduplicated by
// source within the component.
func (c *Client) SearchComponent(ctx context.Context, query string, limit int, component models.EvidenceComponent) (ComponentResult, error) {
	body, err := json.Marshal(searchRequest{
		Query:     query,
		Component: string(component),
		Limit:     limit,
	})
	if err != nil {
		return ComponentResult{}, fmt.Errorf("marshal search request: %w", err)
	}

	url := c.baseURL + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ComponentResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("knowledge").Inc()
		return ComponentResult{}, fmt.Errorf("call graph service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ExternalCallFailures.WithLabelValues("knowledge").Inc()
		return ComponentResult{}, fmt.Errorf("graph service returned status %d for %s", resp.StatusCode, component)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return ComponentResult{}, fmt.Errorf("decode graph response: %w", err)
	}

	var out ComponentResult
	seen := make(map[string]bool)
	for _, r := range sr.Results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		if r.Source != "" && seen[r.Source] {
			continue
		}
		if r.Source != "" {
			seen[r.Source] = true
		}
		out.Contents = append(out.Contents, content)
		out.Citations = append(out.Citations, models.Citation{Source: r.Source})
	}

	c.logger.Debug("Graph component search",
		zap.String("component", string(component)),
		zap.Int("results", len(out.Contents)),
	)
	return out, nil
}
