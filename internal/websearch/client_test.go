package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req["api_key"])
		assert.Equal(t, "durian outbreak", req["query"])

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"title": "Outbreak news", "url": "https://example.com/1", "content": "New outbreak reported"},
				{"title": "Empty", "url": "https://example.com/2", "content": "  "},
				{"title": "Advisory", "url": "https://example.com/3", "content": "Regional advisory issued"},
				{"title": "Extra", "url": "https://example.com/4", "content": "Beyond the limit"},
			},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"}, zap.NewNop())
	results, err := c.Search(context.Background(), "durian outbreak", 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "Outbreak news", results[0].Title)
	assert.Equal(t, "Advisory", results[1].Title)
}

func TestSearchProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
