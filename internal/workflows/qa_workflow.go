package workflows

import (
	"encoding/json"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/orchardai/orchestrator/internal/activities"
	"github.com/orchardai/orchestrator/internal/formatting"
	"github.com/orchardai/orchestrator/internal/metrics"
	"github.com/orchardai/orchestrator/internal/models"
)

// fallbackAnswer is returned when generation itself fails. The run always
// terminates with an answer; this is the floor.
const fallbackAnswer = "I'm sorry, I couldn't produce an answer to that question right now. Please try again."

// AnswerQuestionWorkflow runs one question through routing, retrieval,
// grading, and generation.
//
// Termination: every loop edge either increments a monotone counter
// checked against its ceiling (refinements, regenerations) or flips a
// one-shot flag (the web-search fallback). Counters are never reset, so
// the total number of activity executions is bounded by the option
// ceilings regardless of grader verdicts.
func AnswerQuestionWorkflow(ctx workflow.Context, input QuestionInput) (QuestionResult, error) {
	logger := workflow.GetLogger(ctx)
	if err := input.validate(); err != nil {
		return QuestionResult{}, temporal.NewNonRetryableApplicationError(
			"invalid question input", "InvalidInput", err)
	}
	opts := input.Options.withDefaults()

	// Activity errors are handled here with per-stage defaults, so the
	// activities themselves run a single attempt.
	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var (
		question      = input.Question
		route         models.Route
		kg            activities.KnowledgeSearchResult
		web           activities.WebSearchResult
		refinements   int
		regenerations int
		webFallback   bool
		bestEffort    bool
		answer        string
		trace         []StageRecord
	)

	record := func(name string, start time.Time, counts map[string]int) {
		elapsed := workflow.Now(ctx).Sub(start)
		metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		trace = append(trace, StageRecord{
			Name:       name,
			DurationMs: elapsed.Milliseconds(),
			Counts:     counts,
		})
	}

	// refine rewrites the working question and spends one unit of the
	// shared refinement budget. The original question is never touched.
	refine := func() {
		start := workflow.Now(ctx)
		var rw activities.RewriteQueryResult
		err := workflow.ExecuteActivity(actx, "RewriteQuery",
			activities.RewriteQueryInput{Question: question}).Get(ctx, &rw)
		if err != nil {
			logger.Warn("Query rewrite failed, keeping current question", "error", err)
		} else if rw.Question != "" {
			question = rw.Question
		}
		refinements++
		metrics.RetryCycles.WithLabelValues("refinement").Inc()
		record(StageQueryRefinement, start, map[string]int{"refinements": refinements})
	}

	// Routing. A router failure means we cannot tell whether retrieval
	// would help, so the run answers from model knowledge directly.
	start := workflow.Now(ctx)
	var routed activities.RouteQuestionResult
	if err := workflow.ExecuteActivity(actx, "RouteQuestion",
		activities.RouteQuestionInput{Question: question}).Get(ctx, &routed); err != nil {
		logger.Warn("Routing failed, answering from model knowledge", "error", err)
		route = models.RouteInternal
	} else {
		route = routed.Route
	}
	record(StageRouting, start, nil)
	metrics.WorkflowsStarted.WithLabelValues(string(route)).Inc()
	logger.Info("Question routed", "route", route, "run_id", input.RunID)

	for {
		// Evidence collection for the current route.
		switch route {
		case models.RouteKnowledgeGraph:
			start = workflow.Now(ctx)
			kg = activities.KnowledgeSearchResult{}
			if err := workflow.ExecuteActivity(actx, "KnowledgeGraphSearch",
				activities.KnowledgeSearchInput{
					Query:    question,
					Limit:    opts.RetrievalLimit,
					Evidence: opts.Evidence,
				}).Get(ctx, &kg); err != nil {
				logger.Warn("Knowledge retrieval failed, continuing with no graph evidence", "error", err)
			}
			record(StageKnowledgeRetrieval, start, map[string]int{
				"entities":      kg.Entities.Len(),
				"relationships": kg.Relationships.Len(),
				"episodes":      kg.Episodes.Len(),
				"communities":   kg.Communities.Len(),
			})

			if opts.GradeRelevance {
				start = workflow.Now(ctx)
				before := kg.Total()
				filterRelevance(actx, logger, question, &kg)
				record(StageRelevanceFilter, start, map[string]int{
					"kept":    kg.Total(),
					"dropped": before - kg.Total(),
				})

				if kg.Total() == 0 {
					if refinements < opts.MaxQueryRefinements {
						logger.Info("No relevant evidence, refining query",
							"refinements", refinements)
						refine()
						continue
					}
					if !webFallback {
						logger.Info("Refinement budget spent with no relevant evidence, switching to web search")
						webFallback = true
						route = models.RouteWebSearch
						continue
					}
				}
			}

		case models.RouteWebSearch:
			start = workflow.Now(ctx)
			web = activities.WebSearchResult{}
			if err := workflow.ExecuteActivity(actx, "WebSearch",
				activities.WebSearchInput{Query: question, Limit: opts.WebSearchLimit}).Get(ctx, &web); err != nil {
				logger.Warn("Web search failed, continuing with no web evidence", "error", err)
			}
			record(StageWebSearch, start, map[string]int{"results": len(web.Contents)})

		case models.RouteInternal:
			// No retrieval; the model answers on its own.
		}

		contextBlock := assembleContext(kg, web)

		// Generation, with the bounded regeneration loop when the
		// groundedness gate is on. An empty context block switches the
		// generator to context-free mode and makes grounding meaningless,
		// so the gate only runs when there is something to ground against.
		genFailed := false
		for {
			start = workflow.Now(ctx)
			var gen activities.GenerateAnswerResult
			err := workflow.ExecuteActivity(actx, "GenerateAnswer",
				activities.GenerateAnswerInput{Question: input.Question, Context: contextBlock}).Get(ctx, &gen)
			if err != nil {
				logger.Warn("Answer generation failed, returning fallback answer", "error", err)
				answer = fallbackAnswer
				genFailed = true
			} else {
				answer = gen.Answer
			}
			record(StageAnswerGeneration, start, map[string]int{"context_chars": len(contextBlock)})

			if !opts.CheckGroundedness || contextBlock == "" || genFailed {
				break
			}

			start = workflow.Now(ctx)
			grounded := true
			var gres activities.GradeGroundednessResult
			if gerr := workflow.ExecuteActivity(actx, "GradeGroundedness",
				activities.GradeGroundednessInput{Context: contextBlock, Answer: answer}).Get(ctx, &gres); gerr != nil {
				logger.Warn("Groundedness check failed, accepting answer", "error", gerr)
			} else {
				grounded = gres.Grounded
			}
			record(StageGroundednessCheck, start, map[string]int{"grounded": boolCount(grounded)})

			if grounded {
				break
			}
			if regenerations >= opts.MaxRegenerations {
				logger.Warn("Regeneration budget spent, returning best-effort answer")
				bestEffort = true
				break
			}
			regenerations++
			metrics.RetryCycles.WithLabelValues("regeneration").Inc()
		}

		// Usefulness gate. The internal route has no retrieval loop to
		// re-enter, and a failed generation is already the floor answer.
		if !opts.CheckUsefulness || route == models.RouteInternal || genFailed || bestEffort {
			break
		}

		start = workflow.Now(ctx)
		useful := true
		var ures activities.GradeUsefulnessResult
		if uerr := workflow.ExecuteActivity(actx, "GradeUsefulness",
			activities.GradeUsefulnessInput{Question: input.Question, Answer: answer}).Get(ctx, &ures); uerr != nil {
			logger.Warn("Usefulness check failed, accepting answer", "error", uerr)
		} else {
			useful = ures.Useful
		}
		record(StageUsefulnessCheck, start, map[string]int{"useful": boolCount(useful)})

		if useful {
			break
		}
		if refinements >= opts.MaxQueryRefinements {
			logger.Warn("Refinement budget spent, returning best-effort answer")
			bestEffort = true
			break
		}
		logger.Info("Answer not useful, refining query and re-retrieving")
		refine()
	}

	result := QuestionResult{
		Answer: answer,
		Route:  route,
		Citations: formatting.MergeCitations(
			kg.Entities.Citations,
			kg.Relationships.Citations,
			kg.Episodes.Citations,
			kg.Communities.Citations,
			web.Citations,
		),
		Trace:         trace,
		Refinements:   refinements,
		Regenerations: regenerations,
		BestEffort:    bestEffort,
	}

	outcome := "ok"
	if bestEffort {
		outcome = "best_effort"
	}
	metrics.WorkflowsCompleted.WithLabelValues(outcome).Inc()

	recordRun(ctx, input, result)
	return result, nil
}

// filterRelevance grades every retained item against the working question
// and drops the ones judged irrelevant, keeping citations in lockstep.
// All grades run as parallel activity futures; results are merged in input
// order so the workflow stays deterministic. A grading failure keeps the
// item: losing evidence to a flaky grader is worse than a loose filter.
func filterRelevance(actx workflow.Context, logger log.Logger, question string, kg *activities.KnowledgeSearchResult) {
	components := []*activities.ComponentData{
		&kg.Entities, &kg.Relationships, &kg.Episodes, &kg.Communities,
	}

	futures := make([][]workflow.Future, len(components))
	for ci, comp := range components {
		futures[ci] = make([]workflow.Future, len(comp.Contents))
		for di, doc := range comp.Contents {
			futures[ci][di] = workflow.ExecuteActivity(actx, "GradeRelevance",
				activities.GradeRelevanceInput{Question: question, Document: doc})
		}
	}

	for ci, comp := range components {
		var kept activities.ComponentData
		for di := range comp.Contents {
			keep := true
			var res activities.GradeRelevanceResult
			if err := futures[ci][di].Get(actx, &res); err != nil {
				logger.Warn("Relevance grading failed, keeping document", "error", err)
			} else {
				keep = res.Relevant
			}
			if keep {
				kept.Contents = append(kept.Contents, comp.Contents[di])
				if di < len(comp.Citations) {
					kept.Citations = append(kept.Citations, comp.Citations[di])
				}
			}
		}
		*comp = kept
	}
}

// assembleContext renders the retained evidence into the generation
// context. Empty when there is no evidence at all.
func assembleContext(kg activities.KnowledgeSearchResult, web activities.WebSearchResult) string {
	return formatting.BuildContext([]formatting.Section{
		{Label: formatting.LabelEntities, Contents: kg.Entities.Contents, Citations: kg.Entities.Citations},
		{Label: formatting.LabelRelationships, Contents: kg.Relationships.Contents, Citations: kg.Relationships.Citations},
		{Label: formatting.LabelEpisodes, Contents: kg.Episodes.Contents, Citations: kg.Episodes.Citations},
		{Label: formatting.LabelCommunities, Contents: kg.Communities.Contents, Citations: kg.Communities.Citations},
		{Label: formatting.LabelWeb, Contents: web.Contents, Citations: web.Citations},
	})
}

// recordRun persists the finished run fire-and-forget on a disconnected
// context so a slow or down store never delays the answer.
func recordRun(ctx workflow.Context, input QuestionInput, result QuestionResult) {
	traceJSON, err := json.Marshal(result.Trace)
	if err != nil {
		traceJSON = nil
	}

	dctx, _ := workflow.NewDisconnectedContext(ctx)
	dctx = workflow.WithActivityOptions(dctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 3},
	})
	workflow.ExecuteActivity(dctx, "RecordWorkflowRun", activities.RecordRunInput{
		RunID:         input.RunID,
		Question:      input.Question,
		Route:         result.Route,
		Answer:        result.Answer,
		Citations:     result.Citations,
		Trace:         traceJSON,
		Refinements:   result.Refinements,
		Regenerations: result.Regenerations,
		BestEffort:    result.BestEffort,
	})
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
