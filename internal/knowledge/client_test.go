package knowledge

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

func TestSearchComponent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "entities", req.Component)
		assert.Equal(t, 3, req.Limit)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"content": "Phytophthora palmivora: soil-borne oomycete", "source": "entity:phytophthora"},
				{"content": "", "source": "entity:empty"},
				{"content": "duplicate of first", "source": "entity:phytophthora"},
				{"content": "Leaf curl symptom profile", "source": "entity:leaf-curl"},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	res, err := c.SearchComponent(context.Background(), "leaf curl", 3, models.ComponentEntities)
	require.NoError(t, err)

	// Empty content and duplicate sources are dropped.
	require.Len(t, res.Contents, 2)
	require.Len(t, res.Citations, 2)
	assert.Equal(t, "entity:phytophthora", res.Citations[0].Source)
	assert.Equal(t, "entity:leaf-curl", res.Citations[1].Source)
}

func TestSearchComponentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.SearchComponent(context.Background(), "q", 3, models.ComponentRelationships)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "relationships")
}
