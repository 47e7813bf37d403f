// Package server exposes the question-answering API. It validates
// requests, consults the answer cache, and submits workflow executions.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orchardai/orchestrator/internal/cache"
	"github.com/orchardai/orchestrator/internal/config"
	"github.com/orchardai/orchestrator/internal/db"
	"github.com/orchardai/orchestrator/internal/models"
	"github.com/orchardai/orchestrator/internal/workflows"
)

// WorkflowRunner is the slice of the Temporal client the service uses.
type WorkflowRunner interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// RunHistory is the slice of the store the service reads.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]db.RunRecord, error)
}

// AnswerCache is the slice of the cache the service uses. Nil disables
// caching.
type AnswerCache interface {
	GetResult(ctx context.Context, key string) (*workflows.QuestionResult, bool)
	SetResult(ctx context.Context, key string, res *workflows.QuestionResult)
}

// Service handles the HTTP API.
type Service struct {
	runner    WorkflowRunner
	taskQueue string
	cache     AnswerCache
	history   RunHistory
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu       sync.RWMutex
	defaults config.WorkflowConfig
}

// NewService wires the API service. cache and history may be nil.
func NewService(runner WorkflowRunner, cfg *config.Config, answerCache AnswerCache, history RunHistory, logger *zap.Logger) *Service {
	return &Service{
		runner:    runner,
		taskQueue: cfg.Temporal.TaskQueue,
		cache:     answerCache,
		history:   history,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Service.RateLimitRPS), cfg.Service.RateLimitBurst),
		logger:    logger,
		defaults:  cfg.Workflow,
	}
}

// UpdateDefaults swaps the per-run defaults; wired to config hot reload.
func (s *Service) UpdateDefaults(w config.WorkflowConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = w
}

// RegisterRoutes mounts the API endpoints on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /workflow/run", s.handleRun)
	mux.HandleFunc("GET /workflow/runs", s.handleRecentRuns)
}

type runRequest struct {
	Question            string `json:"question"`
	RetrievalLimit      *int   `json:"retrieval_limit,omitempty"`
	WebSearchLimit      *int   `json:"web_search_limit,omitempty"`
	Entities            *bool  `json:"entities,omitempty"`
	Relationships       *bool  `json:"relationships,omitempty"`
	Episodes            *bool  `json:"episodes,omitempty"`
	Communities         *bool  `json:"communities,omitempty"`
	GradeRelevance      *bool  `json:"grade_relevance,omitempty"`
	CheckGroundedness   *bool  `json:"check_groundedness,omitempty"`
	CheckUsefulness     *bool  `json:"check_usefulness,omitempty"`
	MaxQueryRefinements *int   `json:"max_query_refinements,omitempty"`
	MaxRegenerations    *int   `json:"max_regenerations,omitempty"`
}

type runResponse struct {
	RunID     string                  `json:"run_id"`
	Question  string                  `json:"question"`
	Answer    string                  `json:"answer"`
	Route     models.Route            `json:"route"`
	Citations []models.Citation       `json:"citations,omitempty"`
	Trace     []workflows.StageRecord `json:"workflow_steps"`
	Metadata  map[string]any          `json:"metadata"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// options merges the request overrides over the service defaults.
func (s *Service) options(req runRequest) workflows.RunOptions {
	s.mu.RLock()
	d := s.defaults
	s.mu.RUnlock()

	opts := workflows.RunOptions{
		RetrievalLimit:      d.RetrievalLimit,
		WebSearchLimit:      d.WebSearchLimit,
		Evidence:            d.Evidence(),
		GradeRelevance:      d.GradeRelevance,
		CheckGroundedness:   d.CheckGroundedness,
		CheckUsefulness:     d.CheckUsefulness,
		MaxQueryRefinements: d.MaxQueryRefinements,
		MaxRegenerations:    d.MaxRegenerations,
	}
	if req.RetrievalLimit != nil {
		opts.RetrievalLimit = *req.RetrievalLimit
	}
	if req.WebSearchLimit != nil {
		opts.WebSearchLimit = *req.WebSearchLimit
	}
	if req.Entities != nil {
		opts.Evidence.Entities = *req.Entities
	}
	if req.Relationships != nil {
		opts.Evidence.Relationships = *req.Relationships
	}
	if req.Episodes != nil {
		opts.Evidence.Episodes = *req.Episodes
	}
	if req.Communities != nil {
		opts.Evidence.Communities = *req.Communities
	}
	if req.GradeRelevance != nil {
		opts.GradeRelevance = *req.GradeRelevance
	}
	if req.CheckGroundedness != nil {
		opts.CheckGroundedness = *req.CheckGroundedness
	}
	if req.CheckUsefulness != nil {
		opts.CheckUsefulness = *req.CheckUsefulness
	}
	if req.MaxQueryRefinements != nil {
		opts.MaxQueryRefinements = *req.MaxQueryRefinements
	}
	if req.MaxRegenerations != nil {
		opts.MaxRegenerations = *req.MaxRegenerations
	}
	return opts
}

func (s *Service) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required", "")
		return
	}

	opts := s.options(req)
	if err := opts.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run options", err.Error())
		return
	}
	if !opts.Evidence.Any() {
		writeError(w, http.StatusBadRequest, "invalid run options", "at least one evidence component must be enabled")
		return
	}

	ctx := r.Context()
	cacheKey := cache.Key(req.Question, opts)
	if s.cache != nil {
		if cached, ok := s.cache.GetResult(ctx, cacheKey); ok {
			s.logger.Debug("Answer cache hit", zap.String("question", req.Question))
			s.writeRunResponse(w, "", req.Question, cached, true)
			return
		}
	}

	runID := uuid.New().String()
	input := workflows.QuestionInput{
		RunID:    runID,
		Question: req.Question,
		Options:  opts,
	}

	run, err := s.runner.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "qa-" + runID,
		TaskQueue: s.taskQueue,
	}, workflows.AnswerQuestionWorkflow, input)
	if err != nil {
		s.logger.Error("Failed to start workflow", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start workflow", err.Error())
		return
	}

	var result workflows.QuestionResult
	if err := run.Get(ctx, &result); err != nil {
		s.logger.Error("Workflow failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "workflow execution failed", err.Error())
		return
	}

	if s.cache != nil {
		s.cache.SetResult(ctx, cacheKey, &result)
	}
	s.writeRunResponse(w, runID, req.Question, &result, false)
}

func (s *Service) writeRunResponse(w http.ResponseWriter, runID, question string, result *workflows.QuestionResult, cached bool) {
	writeJSON(w, http.StatusOK, runResponse{
		RunID:     runID,
		Question:  question,
		Answer:    result.Answer,
		Route:     result.Route,
		Citations: result.Citations,
		Trace:     result.Trace,
		Metadata: map[string]any{
			"refinements":   result.Refinements,
			"regenerations": result.Regenerations,
			"best_effort":   result.BestEffort,
			"cached":        cached,
			"total_steps":   len(result.Trace),
		},
	})
}

func (s *Service) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history disabled", "")
		return
	}

	limit := 20
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", q)
			return
		}
		limit = n
	}

	runs, err := s.history.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read run history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read run history", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg, detail string) {
	writeJSON(w, code, errorResponse{Error: msg, Detail: detail})
}

// NewHTTPServer builds the API server with the configured timeouts.
func NewHTTPServer(addr string, handler http.Handler, cfg config.ServiceConfig) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
