package activities

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RewriteQuery reformulates the current question for better retrieval.
// The gateway client already falls back to the input question when the
// model output cannot be parsed, so an error here means the call itself
// failed; the workflow then keeps the current question.
func (a *Activities) RewriteQuery(ctx context.Context, in RewriteQueryInput) (RewriteQueryResult, error) {
	rewritten, err := a.llm.RewriteQuery(ctx, in.Question)
	if err != nil {
		return RewriteQueryResult{}, fmt.Errorf("rewrite query: %w", err)
	}
	if strings.TrimSpace(rewritten) == "" {
		rewritten = in.Question
	}

	a.logger.Info("Query rewritten",
		zap.String("from", in.Question),
		zap.String("to", rewritten),
	)
	return RewriteQueryResult{Question: rewritten}, nil
}
