package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/models"
	"github.com/orchardai/orchestrator/internal/workflows"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(Config{Addr: mr.Addr(), TTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestSetAndGetResult(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	res := &workflows.QuestionResult{
		Answer: "Root rot is caused by Phytophthora.",
		Route:  models.RouteKnowledgeGraph,
		Citations: []models.Citation{
			{Source: "entity:phytophthora"},
		},
		Refinements: 1,
	}
	key := Key("what causes root rot?", workflows.RunOptions{RetrievalLimit: 3})

	_, ok := c.GetResult(ctx, key)
	assert.False(t, ok)

	c.SetResult(ctx, key, res)
	got, ok := c.GetResult(ctx, key)
	require.True(t, ok)
	assert.Equal(t, res.Answer, got.Answer)
	assert.Equal(t, res.Citations, got.Citations)
}

func TestBestEffortResultsNotCached(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	key := Key("q", workflows.RunOptions{})
	c.SetResult(ctx, key, &workflows.QuestionResult{Answer: "weak answer", BestEffort: true})

	_, ok := c.GetResult(ctx, key)
	assert.False(t, ok)
}

func TestKeyVariesWithOptions(t *testing.T) {
	base := workflows.RunOptions{RetrievalLimit: 3}
	changed := base
	changed.CheckGroundedness = true

	assert.NotEqual(t, Key("q", base), Key("q", changed))
	assert.NotEqual(t, Key("q", base), Key("other q", base))
	assert.Equal(t, Key("q", base), Key("q", base))
}

func TestCorruptEntryTreatedAsMiss(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	key := Key("q", workflows.RunOptions{})
	require.NoError(t, mr.Set(key, "not json"))

	_, ok := c.GetResult(ctx, key)
	assert.False(t, ok)
	// The corrupt entry is dropped.
	assert.False(t, mr.Exists(key))
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	key := Key("q", workflows.RunOptions{})
	c.SetResult(ctx, key, &workflows.QuestionResult{Answer: "a"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.GetResult(ctx, key)
	assert.False(t, ok)
}
