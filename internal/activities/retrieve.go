package activities

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orchardai/orchestrator/internal/knowledge"
	"github.com/orchardai/orchestrator/internal/models"
)

// KnowledgeGraphSearch fans out over the enabled graph components. Each
// component runs concurrently and fails independently: a component error
// is logged and its slot stays empty, so one bad index cannot abort the
// rest of the retrieval.
func (a *Activities) KnowledgeGraphSearch(ctx context.Context, in KnowledgeSearchInput) (KnowledgeSearchResult, error) {
	var result KnowledgeSearchResult

	slots := map[models.EvidenceComponent]*ComponentData{
		models.ComponentEntities:      &result.Entities,
		models.ComponentRelationships: &result.Relationships,
		models.ComponentEpisodes:      &result.Episodes,
		models.ComponentCommunities:   &result.Communities,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, component := range in.Evidence.Components() {
		component := component
		slot := slots[component]
		g.Go(func() error {
			res, err := a.knowledge.SearchComponent(gctx, in.Query, in.Limit, component)
			if err != nil {
				a.logger.Warn("Graph component search failed",
					zap.String("component", string(component)),
					zap.Error(err),
				)
				return nil
			}
			*slot = componentDataFrom(res)
			return nil
		})
	}
	// Goroutines never return errors; Wait only synchronizes.
	_ = g.Wait()

	a.logger.Info("Knowledge graph search done",
		zap.String("query", in.Query),
		zap.Int("entities", result.Entities.Len()),
		zap.Int("relationships", result.Relationships.Len()),
		zap.Int("episodes", result.Episodes.Len()),
		zap.Int("communities", result.Communities.Len()),
	)
	return result, nil
}

// componentDataFrom converts a client result. Kept as an explicit helper
// so the conversion stays valid if the types diverge.
func componentDataFrom(res knowledge.ComponentResult) ComponentData {
	return ComponentData{Contents: res.Contents, Citations: res.Citations}
}
