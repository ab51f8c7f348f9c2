package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeProjectRecalc re-evaluates every BOQ line of one project.
	TypeProjectRecalc = "project:recalculate"
	// TypePricingSweep is the nightly price-list integrity check.
	TypePricingSweep = "pricing:sweep"
)

// QueueDefault is the only queue the worker consumes.
const QueueDefault = "default"

// PricingSweepCron fires once a night at 02:00 UTC.
const PricingSweepCron = "0 2 * * *"

type projectRecalcPayload struct {
	ProjectID int64 `json:"project_id"`
}

// NewProjectRecalcTask builds the recalculation task for a project.
func NewProjectRecalcTask(projectID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(projectRecalcPayload{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal recalc payload: %w", err)
	}
	return asynq.NewTask(TypeProjectRecalc, payload, asynq.MaxRetry(3)), nil
}

// NewPricingSweepTask builds the sweep task; it carries no payload.
func NewPricingSweepTask() *asynq.Task {
	return asynq.NewTask(TypePricingSweep, nil, asynq.MaxRetry(1))
}
