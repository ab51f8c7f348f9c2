package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rencana-app/rencana/internal/observability"
	"github.com/rencana-app/rencana/internal/shared"
)

// ProjectRecalculator re-evaluates every line of a project's bill of
// quantities. Satisfied by boq.Service.
type ProjectRecalculator interface {
	RecalculateProject(ctx context.Context, projectID int64) error
}

// NewProjectRecalcHandler returns the handler for project:recalculate tasks.
func NewProjectRecalcHandler(logger *slog.Logger, boq ProjectRecalculator, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload projectRecalcPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("jobs: decode recalc payload: %w: %w", err, asynq.SkipRetry)
		}
		if payload.ProjectID <= 0 {
			return fmt.Errorf("jobs: recalc payload has no project: %w", asynq.SkipRetry)
		}

		start := time.Now()
		err := boq.RecalculateProject(ctx, payload.ProjectID)
		switch {
		case err == nil:
			metrics.ObserveRecalc("success")
			logger.Info("project recalculated",
				"project_id", payload.ProjectID,
				"duration", time.Since(start))
			return nil
		case errors.Is(err, shared.ErrNotFound):
			// Project deleted after enqueue; nothing left to compute.
			metrics.ObserveRecalc("skipped")
			logger.Info("recalc skipped, project gone", "project_id", payload.ProjectID)
			return nil
		default:
			metrics.ObserveRecalc("failure")
			logger.Error("project recalc failed",
				"project_id", payload.ProjectID,
				"error", err)
			return err
		}
	}
}
