package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/models"
)

// WebSearch retrieves web results for the query. A provider failure
// yields an empty result rather than an error: the run continues and the
// generator works with whatever evidence exists.
func (a *Activities) WebSearch(ctx context.Context, in WebSearchInput) (WebSearchResult, error) {
	results, err := a.web.Search(ctx, in.Query, in.Limit)
	if err != nil {
		a.logger.Warn("Web search failed, continuing without web evidence",
			zap.String("query", in.Query),
			zap.Error(err),
		)
		return WebSearchResult{}, nil
	}

	var out WebSearchResult
	seen := make(map[string]bool)
	for _, r := range results {
		source := r.Title
		if source == "" {
			source = r.URL
		}
		if source != "" && seen[source] {
			continue
		}
		if source != "" {
			seen[source] = true
		}
		out.Contents = append(out.Contents, r.Content)
		out.Citations = append(out.Citations, models.Citation{Source: source, URL: r.URL})
	}

	a.logger.Info("Web search done",
		zap.String("query", in.Query),
		zap.Int("results", len(out.Contents)),
	)
	return out, nil
}
