package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/orchardai/orchestrator/internal/db"
)

// RecordWorkflowRun persists a completed run to the history store. The
// workflow schedules it fire-and-forget on a disconnected context, so a
// store outage never blocks or fails the answer.
func (a *Activities) RecordWorkflowRun(ctx context.Context, in RecordRunInput) error {
	if a.store == nil {
		a.logger.Debug("Run history store disabled, skipping record",
			zap.String("run_id", in.RunID))
		return nil
	}

	citations, err := json.Marshal(in.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	rec := db.RunRecord{
		ID:            in.RunID,
		Question:      in.Question,
		Route:         string(in.Route),
		Answer:        in.Answer,
		Citations:     citations,
		Trace:         in.Trace,
		Refinements:   in.Refinements,
		Regenerations: in.Regenerations,
		BestEffort:    in.BestEffort,
		CreatedAt:     time.Now().UTC(),
	}
	if err := a.store.SaveRun(ctx, rec); err != nil {
		a.logger.Warn("Failed to persist run", zap.String("run_id", in.RunID), zap.Error(err))
		return err
	}
	return nil
}
