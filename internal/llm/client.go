// Package llm is the HTTP client for the model gateway. Every LLM-backed
// step in the workflow (routing, grading, rewriting, generation) goes
// through one of its task methods.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/metrics"
	"github.com/orchardai/orchestrator/internal/models"
	"github.com/orchardai/orchestrator/internal/tracing"
)

// Gateway is the model-service capability the activities depend on.
type Gateway interface {
	Route(ctx context.Context, question string) (models.Route, error)
	GradeRelevance(ctx context.Context, question, document string) (bool, error)
	GradeGroundedness(ctx context.Context, contextBlock, answer string) (bool, error)
	GradeUsefulness(ctx context.Context, question, answer string) (bool, error)
	RewriteQuery(ctx context.Context, question string) (string, error)
	GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error)
	GenerateDirectAnswer(ctx context.Context, question string) (string, error)
}

// Config holds the gateway connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the model gateway over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient builds a gateway client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// query sends a prompt under the given role and returns the raw response
// text with markdown code fences stripped.
func (c *Client) query(ctx context.Context, role, prompt string) (string, error) {
	reqBody := map[string]any{
		"query": prompt,
		"context": map[string]any{
			"role":            role,
			"response_format": map[string]any{"type": "json_object"},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/agent/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("llm").Inc()
		return "", fmt.Errorf("call model gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ExternalCallFailures.WithLabelValues("llm").Inc()
		return "", fmt.Errorf("model gateway returned status %d", resp.StatusCode)
	}

	var gwResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&gwResp); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}
	return stripCodeFences(gwResp.Response), nil
}

// stripCodeFences removes a surrounding ```json / ``` block if the model
// wrapped its output in one.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// Route classifies a question into an evidence-sourcing route. The
// decision is two-fold: is the question in the orchard pest-and-disease
// domain, and if so does it need fresher information than the graph holds.
func (c *Client) Route(ctx context.Context, question string) (models.Route, error) {
	prompt := fmt.Sprintf(`You route user questions for an orchard pest-and-disease assistant.

Decide in two steps:
1. Is the question about orchard pests, diseases, or crop care? If not, answer "internal".
2. If it is in domain, does it ask about latest news, current outbreaks, or recent developments? If so answer "web_search", otherwise answer "knowledge_graph".

Question: %s

Respond in JSON format:
{"data_source": "knowledge_graph" | "web_search" | "internal"}`, question)

	text, err := c.query(ctx, "question_router", prompt)
	if err != nil {
		return "", err
	}

	var decision struct {
		DataSource string `json:"data_source"`
	}
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		return "", fmt.Errorf("parse router decision %q: %w", text, err)
	}
	route := models.Route(decision.DataSource)
	if !route.Valid() {
		return "", fmt.Errorf("unrecognized route %q", decision.DataSource)
	}
	return route, nil
}

// gradeBinary runs a yes/no judgement prompt and parses the score.
func (c *Client) gradeBinary(ctx context.Context, role, prompt string) (bool, error) {
	text, err := c.query(ctx, role, prompt)
	if err != nil {
		return false, err
	}
	var grade struct {
		BinaryScore string `json:"binary_score"`
	}
	if err := json.Unmarshal([]byte(text), &grade); err != nil {
		return false, fmt.Errorf("parse grade %q: %w", text, err)
	}
	switch strings.ToLower(strings.TrimSpace(grade.BinaryScore)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized grade %q", grade.BinaryScore)
}

// GradeRelevance judges whether one retrieved document bears on the question.
func (c *Client) GradeRelevance(ctx context.Context, question, document string) (bool, error) {
	prompt := fmt.Sprintf(`You grade the relevance of a retrieved document to a user question.
It does not need to answer the question, only to contain related keywords or meaning.

Document:
%s

Question: %s

Respond in JSON format:
{"binary_score": "yes" | "no"}`, document, question)
	return c.gradeBinary(ctx, "relevance_grader", prompt)
}

// GradeGroundedness judges whether an answer is supported by the context
// it was generated from.
func (c *Client) GradeGroundedness(ctx context.Context, contextBlock, answer string) (bool, error) {
	prompt := fmt.Sprintf(`You check whether an answer is grounded in the supplied facts.
Answer "yes" only if every claim in the answer is supported by the facts.

Facts:
%s

Answer:
%s

Respond in JSON format:
{"binary_score": "yes" | "no"}`, contextBlock, answer)
	return c.gradeBinary(ctx, "groundedness_grader", prompt)
}

// GradeUsefulness judges whether an answer actually addresses the question.
func (c *Client) GradeUsefulness(ctx context.Context, question, answer string) (bool, error) {
	prompt := fmt.Sprintf(`You check whether an answer resolves a user question.

Question: %s

Answer:
%s

Respond in JSON format:
{"binary_score": "yes" | "no"}`, question, answer)
	return c.gradeBinary(ctx, "usefulness_grader", prompt)
}

// RewriteQuery reformulates a question to improve retrieval recall.
func (c *Client) RewriteQuery(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You rewrite questions to improve retrieval from a knowledge base.
Reason about the underlying semantic intent and produce a clearer, more
specific version of the question.

Question: %s

Respond in JSON format:
{"rewritten_question": "..."}`, question)

	text, err := c.query(ctx, "query_rewriter", prompt)
	if err != nil {
		return "", err
	}
	var rewrite struct {
		RewrittenQuestion string `json:"rewritten_question"`
	}
	if err := json.Unmarshal([]byte(text), &rewrite); err != nil {
		// Parse failure keeps the original question so retrieval still runs.
		c.logger.Warn("Failed to parse rewrite, keeping original question",
			zap.Error(err), zap.String("response", text))
		return question, nil
	}
	if strings.TrimSpace(rewrite.RewrittenQuestion) == "" {
		return question, nil
	}
	return rewrite.RewrittenQuestion, nil
}

// GenerateAnswer produces an answer from the question and assembled context.
func (c *Client) GenerateAnswer(ctx context.Context, question, contextBlock string) (string, error) {
	prompt := fmt.Sprintf(`You are an orchard pest-and-disease assistant. Answer the question
using the retrieved facts below. Be concise and concrete. If the facts do
not cover the question, say what is known and what is not.

Facts:
%s

Question: %s

Respond in JSON format:
{"answer": "..."}`, contextBlock, question)
	return c.generate(ctx, "answer_generator", prompt)
}

// GenerateDirectAnswer produces an answer from model knowledge alone.
func (c *Client) GenerateDirectAnswer(ctx context.Context, question string) (string, error) {
	prompt := fmt.Sprintf(`You are a helpful assistant. Answer the question directly and concisely.

Question: %s

Respond in JSON format:
{"answer": "..."}`, question)
	return c.generate(ctx, "answer_generator", prompt)
}

func (c *Client) generate(ctx context.Context, role, prompt string) (string, error) {
	text, err := c.query(ctx, role, prompt)
	if err != nil {
		return "", err
	}
	var gen struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(text), &gen); err != nil || strings.TrimSpace(gen.Answer) == "" {
		// Some models answer in plain text despite the format instruction.
		if strings.TrimSpace(text) != "" && !strings.HasPrefix(strings.TrimSpace(text), "{") {
			return strings.TrimSpace(text), nil
		}
		if err != nil {
			return "", fmt.Errorf("parse generation %q: %w", text, err)
		}
		return "", fmt.Errorf("empty generation")
	}
	return gen.Answer, nil
}
