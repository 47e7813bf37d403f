// Package workflows contains the question-answering workflow: an adaptive
// retrieval pipeline expressed as a deterministic Temporal workflow with
// bounded retry loops.
package workflows

import (
	"fmt"
	"strings"

	"github.com/orchardai/orchestrator/internal/models"
)

// RunOptions are the per-run tuning knobs. Zero values fall back to the
// service defaults via withDefaults.
type RunOptions struct {
	RetrievalLimit      int                    `json:"retrieval_limit"`
	WebSearchLimit      int                    `json:"web_search_limit"`
	Evidence            models.EvidenceOptions `json:"evidence"`
	GradeRelevance      bool                   `json:"grade_relevance"`
	CheckGroundedness   bool                   `json:"check_groundedness"`
	CheckUsefulness     bool                   `json:"check_usefulness"`
	MaxQueryRefinements int                    `json:"max_query_refinements"`
	MaxRegenerations    int                    `json:"max_regenerations"`
}

// Validate rejects option combinations the workflow cannot run with.
// This is the only error class that prevents a run from producing an
// answer, so it is checked before the workflow starts.
func (o RunOptions) Validate() error {
	if o.RetrievalLimit < 0 {
		return fmt.Errorf("retrieval_limit must not be negative")
	}
	if o.WebSearchLimit < 0 {
		return fmt.Errorf("web_search_limit must not be negative")
	}
	if o.MaxQueryRefinements < 0 {
		return fmt.Errorf("max_query_refinements must not be negative")
	}
	if o.MaxRegenerations < 0 {
		return fmt.Errorf("max_regenerations must not be negative")
	}
	return nil
}

const (
	defaultRetrievalLimit   = 3
	defaultWebSearchLimit   = 3
	defaultMaxRefinements   = 3
	defaultMaxRegenerations = 3
)

func (o RunOptions) withDefaults() RunOptions {
	if o.RetrievalLimit == 0 {
		o.RetrievalLimit = defaultRetrievalLimit
	}
	if o.WebSearchLimit == 0 {
		o.WebSearchLimit = defaultWebSearchLimit
	}
	if !o.Evidence.Any() {
		o.Evidence = models.DefaultEvidenceOptions()
	}
	if o.MaxQueryRefinements == 0 {
		o.MaxQueryRefinements = defaultMaxRefinements
	}
	if o.MaxRegenerations == 0 {
		o.MaxRegenerations = defaultMaxRegenerations
	}
	return o
}

// QuestionInput starts one question run.
type QuestionInput struct {
	RunID    string     `json:"run_id"`
	Question string     `json:"question"`
	Options  RunOptions `json:"options"`
}

func (in QuestionInput) validate() error {
	if strings.TrimSpace(in.Question) == "" {
		return fmt.Errorf("question must not be empty")
	}
	return in.Options.Validate()
}

// StageRecord is one entry in the run trace.
type StageRecord struct {
	Name       string         `json:"name"`
	DurationMs int64          `json:"duration_ms"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// QuestionResult is the terminal output of a run. Answer is always set;
// BestEffort marks answers that failed a quality gate after the retry
// budget was spent.
type QuestionResult struct {
	Answer        string            `json:"answer"`
	Route         models.Route      `json:"route"`
	Citations     []models.Citation `json:"citations,omitempty"`
	Trace         []StageRecord     `json:"trace"`
	Refinements   int               `json:"refinements"`
	Regenerations int               `json:"regenerations"`
	BestEffort    bool              `json:"best_effort"`
}

// Stage names as they appear in the run trace.
const (
	StageRouting           = "routing"
	StageKnowledgeRetrieval = "knowledge_retrieval"
	StageWebSearch         = "web_search"
	StageRelevanceFilter   = "relevance_filter"
	StageQueryRefinement   = "query_refinement"
	StageAnswerGeneration  = "answer_generation"
	StageGroundednessCheck = "groundedness_check"
	StageUsefulnessCheck   = "usefulness_check"
)
