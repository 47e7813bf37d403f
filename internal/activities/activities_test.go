package activities

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/db"
	"github.com/orchardai/orchestrator/internal/knowledge"
	"github.com/orchardai/orchestrator/internal/models"
	"github.com/orchardai/orchestrator/internal/websearch"
)

// fakeGateway scripts the model gateway.
type fakeGateway struct {
	route    models.Route
	routeErr error
	rewrite  string
	answer   string
}

func (f *fakeGateway) Route(ctx context.Context, question string) (models.Route, error) {
	return f.route, f.routeErr
}
func (f *fakeGateway) GradeRelevance(ctx context.Context, q, d string) (bool, error) {
	return true, nil
}
func (f *fakeGateway) GradeGroundedness(ctx context.Context, c, a string) (bool, error) {
	return true, nil
}
func (f *fakeGateway) GradeUsefulness(ctx context.Context, q, a string) (bool, error) {
	return true, nil
}
func (f *fakeGateway) RewriteQuery(ctx context.Context, q string) (string, error) {
	return f.rewrite, nil
}
func (f *fakeGateway) GenerateAnswer(ctx context.Context, q, c string) (string, error) {
	return f.answer, nil
}
func (f *fakeGateway) GenerateDirectAnswer(ctx context.Context, q string) (string, error) {
	return f.answer, nil
}

// fakeSearcher fails configured components and serves the rest. Calls
// arrive concurrently from the retrieval fan-out.
type fakeSearcher struct {
	mu      sync.Mutex
	failing map[models.EvidenceComponent]bool
	calls   []models.EvidenceComponent
}

func (f *fakeSearcher) SearchComponent(ctx context.Context, query string, limit int, component models.EvidenceComponent) (knowledge.ComponentResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, component)
	f.mu.Unlock()
	if f.failing[component] {
		return knowledge.ComponentResult{}, errors.New("component index unavailable")
	}
	return knowledge.ComponentResult{
		Contents:  []string{string(component) + " fact about " + query},
		Citations: []models.Citation{{Source: string(component) + ":1"}},
	}, nil
}

type fakeWeb struct {
	results []websearch.Result
	err     error
}

func (f *fakeWeb) Search(ctx context.Context, query string, limit int) ([]websearch.Result, error) {
	return f.results, f.err
}

type fakeStore struct {
	saved []db.RunRecord
	err   error
}

func (f *fakeStore) SaveRun(ctx context.Context, rec db.RunRecord) error {
	f.saved = append(f.saved, rec)
	return f.err
}

func TestKnowledgeGraphSearchPartialFailure(t *testing.T) {
	searcher := &fakeSearcher{failing: map[models.EvidenceComponent]bool{
		models.ComponentRelationships: true,
	}}
	a := NewActivities(&fakeGateway{}, searcher, &fakeWeb{}, nil, zap.NewNop())

	res, err := a.KnowledgeGraphSearch(context.Background(), KnowledgeSearchInput{
		Query:    "root rot",
		Limit:    3,
		Evidence: models.EvidenceOptions{Entities: true, Relationships: true, Episodes: true},
	})
	require.NoError(t, err)

	// The failing component is empty; its siblings are untouched.
	assert.Equal(t, 1, res.Entities.Len())
	assert.Equal(t, 0, res.Relationships.Len())
	assert.Equal(t, 1, res.Episodes.Len())
	assert.Equal(t, 0, res.Communities.Len())
	assert.Len(t, searcher.calls, 3)
}

func TestKnowledgeGraphSearchOnlyEnabledComponents(t *testing.T) {
	searcher := &fakeSearcher{}
	a := NewActivities(&fakeGateway{}, searcher, &fakeWeb{}, nil, zap.NewNop())

	res, err := a.KnowledgeGraphSearch(context.Background(), KnowledgeSearchInput{
		Query:    "leaf curl",
		Limit:    3,
		Evidence: models.EvidenceOptions{Communities: true},
	})
	require.NoError(t, err)

	assert.Equal(t, []models.EvidenceComponent{models.ComponentCommunities}, searcher.calls)
	assert.Equal(t, 1, res.Total())
	assert.Equal(t, "communities:1", res.Communities.Citations[0].Source)
}

func TestWebSearchSwallowsProviderError(t *testing.T) {
	a := NewActivities(&fakeGateway{}, &fakeSearcher{}, &fakeWeb{err: errors.New("quota exceeded")}, nil, zap.NewNop())

	res, err := a.WebSearch(context.Background(), WebSearchInput{Query: "outbreak", Limit: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Contents)
	assert.Empty(t, res.Citations)
}

func TestWebSearchDeduplicatesBySource(t *testing.T) {
	web := &fakeWeb{results: []websearch.Result{
		{Title: "Advisory", URL: "https://a", Content: "first"},
		{Title: "Advisory", URL: "https://a2", Content: "same title"},
		{Title: "", URL: "https://b", Content: "url as source"},
	}}
	a := NewActivities(&fakeGateway{}, &fakeSearcher{}, web, nil, zap.NewNop())

	res, err := a.WebSearch(context.Background(), WebSearchInput{Query: "q", Limit: 3})
	require.NoError(t, err)
	require.Len(t, res.Contents, 2)
	assert.Equal(t, "Advisory", res.Citations[0].Source)
	assert.Equal(t, "https://b", res.Citations[1].Source)
}

func TestRouteQuestionPropagatesGatewayError(t *testing.T) {
	a := NewActivities(&fakeGateway{routeErr: errors.New("bad decision")}, &fakeSearcher{}, &fakeWeb{}, nil, zap.NewNop())

	_, err := a.RouteQuestion(context.Background(), RouteQuestionInput{Question: "q"})
	require.Error(t, err)
}

func TestRouteQuestion(t *testing.T) {
	a := NewActivities(&fakeGateway{route: models.RouteWebSearch}, &fakeSearcher{}, &fakeWeb{}, nil, zap.NewNop())

	res, err := a.RouteQuestion(context.Background(), RouteQuestionInput{Question: "latest news?"})
	require.NoError(t, err)
	assert.Equal(t, models.RouteWebSearch, res.Route)
}

func TestGenerateAnswerPicksMode(t *testing.T) {
	gw := &fakeGateway{answer: "an answer"}
	a := NewActivities(gw, &fakeSearcher{}, &fakeWeb{}, nil, zap.NewNop())

	res, err := a.GenerateAnswer(context.Background(), GenerateAnswerInput{Question: "q", Context: "facts"})
	require.NoError(t, err)
	assert.Equal(t, "an answer", res.Answer)

	res, err = a.GenerateAnswer(context.Background(), GenerateAnswerInput{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "an answer", res.Answer)
}

func TestRecordWorkflowRun(t *testing.T) {
	store := &fakeStore{}
	a := NewActivities(&fakeGateway{}, &fakeSearcher{}, &fakeWeb{}, store, zap.NewNop())

	err := a.RecordWorkflowRun(context.Background(), RecordRunInput{
		RunID:    "run-1",
		Question: "q",
		Route:    models.RouteKnowledgeGraph,
		Answer:   "a",
		Citations: []models.Citation{
			{Source: "entity:x"},
		},
		Refinements: 2,
	})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	assert.Equal(t, "run-1", store.saved[0].ID)
	assert.Equal(t, "knowledge_graph", store.saved[0].Route)
	assert.JSONEq(t, `[{"source":"entity:x"}]`, string(store.saved[0].Citations))
	assert.Equal(t, 2, store.saved[0].Refinements)
}

func TestRecordWorkflowRunWithoutStore(t *testing.T) {
	a := NewActivities(&fakeGateway{}, &fakeSearcher{}, &fakeWeb{}, nil, zap.NewNop())

	err := a.RecordWorkflowRun(context.Background(), RecordRunInput{RunID: "run-2"})
	require.NoError(t, err)
}
