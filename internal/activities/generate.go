package activities

import (
	"context"
	"fmt"
)

// GenerateAnswer produces the answer. With context it instructs the model
// to stay within the supplied facts; without it the model answers from
// its own knowledge.
func (a *Activities) GenerateAnswer(ctx context.Context, in GenerateAnswerInput) (GenerateAnswerResult, error) {
	var (
		answer string
		err    error
	)
	if in.Context == "" {
		answer, err = a.llm.GenerateDirectAnswer(ctx, in.Question)
	} else {
		answer, err = a.llm.GenerateAnswer(ctx, in.Question, in.Context)
	}
	if err != nil {
		return GenerateAnswerResult{}, fmt.Errorf("generate answer: %w", err)
	}
	return GenerateAnswerResult{Answer: answer}, nil
}
