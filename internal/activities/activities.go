// Package activities implements the Temporal activities behind the
// question-answering workflow. Every side effect (LLM calls, graph and
// web search, persistence) lives here; the workflow itself stays
// deterministic.
package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/db"
	"github.com/orchardai/orchestrator/internal/knowledge"
	"github.com/orchardai/orchestrator/internal/llm"
	"github.com/orchardai/orchestrator/internal/models"
	"github.com/orchardai/orchestrator/internal/websearch"
)

// KnowledgeSearcher is the graph search dependency.
type KnowledgeSearcher interface {
	SearchComponent(ctx context.Context, query string, limit int, component models.EvidenceComponent) (knowledge.ComponentResult, error)
}

// WebSearcher is the web search dependency.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]websearch.Result, error)
}

// RunStore persists completed runs. Nil disables persistence.
type RunStore interface {
	SaveRun(ctx context.Context, rec db.RunRecord) error
}

// Activities bundles the workflow's dependencies. Its exported methods are
// registered on the Temporal worker.
type Activities struct {
	llm       llm.Gateway
	knowledge KnowledgeSearcher
	web       WebSearcher
	store     RunStore
	logger    *zap.Logger
}

// NewActivities wires the activity dependencies.
func NewActivities(gateway llm.Gateway, kg KnowledgeSearcher, web WebSearcher, store RunStore, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Activities{
		llm:       gateway,
		knowledge: kg,
		web:       web,
		store:     store,
		logger:    logger,
	}
}
