package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "llm:\n  base_url: http://localhost:8000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Service.Port)
	assert.Equal(t, "orchard-qa", cfg.Temporal.TaskQueue)
	assert.Equal(t, 3, cfg.Workflow.RetrievalLimit)
	assert.Equal(t, 3, cfg.Workflow.MaxQueryRefinements)
	assert.True(t, cfg.Workflow.Entities)
	assert.True(t, cfg.Workflow.Relationships)
	assert.False(t, cfg.Workflow.Episodes)
	assert.False(t, cfg.Workflow.GradeRelevance)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  base_url: http://llm:8000
workflow:
  retrieval_limit: 5
  check_groundedness: true
  max_regenerations: 1
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workflow.RetrievalLimit)
	assert.True(t, cfg.Workflow.CheckGroundedness)
	assert.Equal(t, 1, cfg.Workflow.MaxRegenerations)
}

func TestLoadMissingLLMBaseURL(t *testing.T) {
	path := writeConfig(t, "service:\n  port: 8080\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.base_url")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "zero retrieval limit",
			body: "llm:\n  base_url: http://llm\nworkflow:\n  retrieval_limit: 0\n",
			want: "retrieval_limit",
		},
		{
			name: "negative refinement ceiling",
			body: "llm:\n  base_url: http://llm\nworkflow:\n  max_query_refinements: -1\n",
			want: "max_query_refinements",
		},
		{
			name: "all components disabled",
			body: "llm:\n  base_url: http://llm\nworkflow:\n  entities: false\n  relationships: false\n",
			want: "evidence component",
		},
		{
			name: "bad port",
			body: "llm:\n  base_url: http://llm\nservice:\n  port: 70000\n",
			want: "service.port",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestEvidenceOptionsFromWorkflowConfig(t *testing.T) {
	w := WorkflowConfig{Entities: true, Communities: true}
	ev := w.Evidence()
	assert.True(t, ev.Entities)
	assert.False(t, ev.Relationships)
	assert.True(t, ev.Communities)
	assert.True(t, ev.Any())
}
