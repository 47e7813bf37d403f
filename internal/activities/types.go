package activities

import "github.com/orchardai/orchestrator/internal/models"

// RouteQuestionInput asks the router to classify a question.
type RouteQuestionInput struct {
	Question string `json:"question"`
}

// RouteQuestionResult carries the chosen route.
type RouteQuestionResult struct {
	Route models.Route `json:"route"`
}

// ComponentData is the content and citations retrieved for one graph
// component. Citations are positional with Contents.
type ComponentData struct {
	Contents  []string          `json:"contents,omitempty"`
	Citations []models.Citation `json:"citations,omitempty"`
}

// Len returns the number of retained items.
func (d ComponentData) Len() int { return len(d.Contents) }

// KnowledgeSearchInput runs a graph retrieval over the enabled components.
type KnowledgeSearchInput struct {
	Query    string                 `json:"query"`
	Limit    int                    `json:"limit"`
	Evidence models.EvidenceOptions `json:"evidence"`
}

// KnowledgeSearchResult carries the per-component retrieval output. A
// component that failed or was disabled is simply empty.
type KnowledgeSearchResult struct {
	Entities      ComponentData `json:"entities"`
	Relationships ComponentData `json:"relationships"`
	Episodes      ComponentData `json:"episodes"`
	Communities   ComponentData `json:"communities"`
}

// Total returns the number of items across all components.
func (r KnowledgeSearchResult) Total() int {
	return r.Entities.Len() + r.Relationships.Len() + r.Episodes.Len() + r.Communities.Len()
}

// WebSearchInput runs a web retrieval.
type WebSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// WebSearchResult carries web contents and citations, positionally aligned.
type WebSearchResult struct {
	Contents  []string          `json:"contents,omitempty"`
	Citations []models.Citation `json:"citations,omitempty"`
}

// GradeRelevanceInput judges one document against the question.
type GradeRelevanceInput struct {
	Question string `json:"question"`
	Document string `json:"document"`
}

// GradeRelevanceResult carries the relevance verdict.
type GradeRelevanceResult struct {
	Relevant bool `json:"relevant"`
}

// GradeGroundednessInput judges an answer against its context.
type GradeGroundednessInput struct {
	Context string `json:"context"`
	Answer  string `json:"answer"`
}

// GradeGroundednessResult carries the groundedness verdict.
type GradeGroundednessResult struct {
	Grounded bool `json:"grounded"`
}

// GradeUsefulnessInput judges an answer against the original question.
type GradeUsefulnessInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// GradeUsefulnessResult carries the usefulness verdict.
type GradeUsefulnessResult struct {
	Useful bool `json:"useful"`
}

// RewriteQueryInput rewrites the current question for better retrieval.
type RewriteQueryInput struct {
	Question string `json:"question"`
}

// RewriteQueryResult carries the rewritten question.
type RewriteQueryResult struct {
	Question string `json:"question"`
}

// GenerateAnswerInput produces an answer. An empty Context switches the
// generator to context-free mode.
type GenerateAnswerInput struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// GenerateAnswerResult carries the generated answer.
type GenerateAnswerResult struct {
	Answer string `json:"answer"`
}

// RecordRunInput persists one completed run.
type RecordRunInput struct {
	RunID         string            `json:"run_id"`
	Question      string            `json:"question"`
	Route         models.Route      `json:"route"`
	Answer        string            `json:"answer"`
	Citations     []models.Citation `json:"citations,omitempty"`
	Trace         []byte            `json:"trace,omitempty"`
	Refinements   int               `json:"refinements"`
	Regenerations int               `json:"regenerations"`
	BestEffort    bool              `json:"best_effort"`
}
