package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/models"
)

// gatewayStub serves canned /agent/query responses and records the roles
// it was asked for.
func gatewayStub(t *testing.T, response string) (*Client, *[]string) {
	t.Helper()
	var roles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/agent/query", r.URL.Path)
		var body struct {
			Query   string         `json:"query"`
			Context map[string]any `json:"context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if role, ok := body.Context["role"].(string); ok {
			roles = append(roles, role)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": response})
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL}, zap.NewNop()), &roles
}

func TestRoute(t *testing.T) {
	c, roles := gatewayStub(t, `{"data_source": "knowledge_graph"}`)

	route, err := c.Route(context.Background(), "what causes leaf curl?")
	require.NoError(t, err)
	assert.Equal(t, models.RouteKnowledgeGraph, route)
	assert.Equal(t, []string{"question_router"}, *roles)
}

func TestRouteStripsCodeFences(t *testing.T) {
	c, _ := gatewayStub(t, "```json\n{\"data_source\": \"web_search\"}\n```")

	route, err := c.Route(context.Background(), "latest outbreak news?")
	require.NoError(t, err)
	assert.Equal(t, models.RouteWebSearch, route)
}

func TestRouteRejectsUnknownValue(t *testing.T) {
	c, _ := gatewayStub(t, `{"data_source": "magic"}`)

	_, err := c.Route(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized route")
}

func TestRouteRejectsGarbage(t *testing.T) {
	c, _ := gatewayStub(t, "definitely not json")

	_, err := c.Route(context.Background(), "q")
	require.Error(t, err)
}

func TestGradeRelevance(t *testing.T) {
	c, roles := gatewayStub(t, `{"binary_score": "yes"}`)

	ok, err := c.GradeRelevance(context.Background(), "q", "doc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"relevance_grader"}, *roles)
}

func TestGradeUnrecognizedScore(t *testing.T) {
	c, _ := gatewayStub(t, `{"binary_score": "maybe"}`)

	_, err := c.GradeGroundedness(context.Background(), "facts", "answer")
	require.Error(t, err)
}

func TestRewriteQueryFallsBackToOriginal(t *testing.T) {
	c, _ := gatewayStub(t, "not json at all")

	out, err := c.RewriteQuery(context.Background(), "original question")
	require.NoError(t, err)
	assert.Equal(t, "original question", out)
}

func TestGenerateAnswer(t *testing.T) {
	c, _ := gatewayStub(t, `{"answer": "Spray copper fungicide."}`)

	out, err := c.GenerateAnswer(context.Background(), "q", "facts")
	require.NoError(t, err)
	assert.Equal(t, "Spray copper fungicide.", out)
}

func TestGenerateAnswerPlainTextFallback(t *testing.T) {
	c, _ := gatewayStub(t, "Spray copper fungicide.")

	out, err := c.GenerateDirectAnswer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "Spray copper fungicide.", out)
}

func TestGatewayErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())

	_, err := c.Route(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
}
