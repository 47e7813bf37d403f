package activities

import (
	"context"
	"fmt"

	"github.com/orchardai/orchestrator/internal/metrics"
)

// GradeRelevance judges whether one retrieved document bears on the
// question. Errors surface to the workflow, which keeps the document:
// losing evidence to a flaky grader is worse than a loose filter.
func (a *Activities) GradeRelevance(ctx context.Context, in GradeRelevanceInput) (GradeRelevanceResult, error) {
	relevant, err := a.llm.GradeRelevance(ctx, in.Question, in.Document)
	if err != nil {
		return GradeRelevanceResult{}, fmt.Errorf("grade relevance: %w", err)
	}
	verdict := "no"
	if relevant {
		verdict = "yes"
	}
	metrics.GateVerdicts.WithLabelValues("relevance", verdict).Inc()
	return GradeRelevanceResult{Relevant: relevant}, nil
}

// GradeGroundedness judges whether the answer is supported by its context.
func (a *Activities) GradeGroundedness(ctx context.Context, in GradeGroundednessInput) (GradeGroundednessResult, error) {
	grounded, err := a.llm.GradeGroundedness(ctx, in.Context, in.Answer)
	if err != nil {
		return GradeGroundednessResult{}, fmt.Errorf("grade groundedness: %w", err)
	}
	verdict := "no"
	if grounded {
		verdict = "yes"
	}
	metrics.GateVerdicts.WithLabelValues("groundedness", verdict).Inc()
	return GradeGroundednessResult{Grounded: grounded}, nil
}

// GradeUsefulness judges whether the answer addresses the original question.
func (a *Activities) GradeUsefulness(ctx context.Context, in GradeUsefulnessInput) (GradeUsefulnessResult, error) {
	useful, err := a.llm.GradeUsefulness(ctx, in.Question, in.Answer)
	if err != nil {
		return GradeUsefulnessResult{}, fmt.Errorf("grade usefulness: %w", err)
	}
	verdict := "no"
	if useful {
		verdict = "yes"
	}
	metrics.GateVerdicts.WithLabelValues("usefulness", verdict).Inc()
	return GradeUsefulnessResult{Useful: useful}, nil
}
