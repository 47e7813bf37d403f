package activities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/metrics"
)

// RouteQuestion classifies the question into an evidence-sourcing route.
// A gateway failure or unparseable decision surfaces as an error; the
// workflow maps it to the direct-generation path.
func (a *Activities) RouteQuestion(ctx context.Context, in RouteQuestionInput) (RouteQuestionResult, error) {
	route, err := a.llm.Route(ctx, in.Question)
	if err != nil {
		a.logger.Warn("Routing failed", zap.Error(err))
		return RouteQuestionResult{}, fmt.Errorf("route question: %w", err)
	}

	metrics.RouteDecisions.WithLabelValues(string(route)).Inc()
	a.logger.Info("Question routed",
		zap.String("route", string(route)),
		zap.String("question", in.Question),
	)
	return RouteQuestionResult{Route: route}, nil
}
