package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks. Implements project.Recalcer.
type Client struct {
	logger *slog.Logger
	asynq  *asynq.Client
}

func NewClient(logger *slog.Logger, redisOpts asynq.RedisClientOpt) *Client {
	return &Client{
		logger: logger,
		asynq:  asynq.NewClient(redisOpts),
	}
}

func (c *Client) Close() error {
	return c.asynq.Close()
}

// EnqueueRecalc queues a full recalculation for the project. Duplicate
// requests for the same project collapse onto the pending task.
func (c *Client) EnqueueRecalc(ctx context.Context, projectID int64) error {
	task, err := NewProjectRecalcTask(projectID)
	if err != nil {
		return err
	}
	info, err := c.asynq.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(fmt.Sprintf("%s:%d", TypeProjectRecalc, projectID)))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("recalc already pending", "project_id", projectID)
			return nil
		}
		return fmt.Errorf("jobs: enqueue recalc for project %d: %w", projectID, err)
	}
	c.logger.Info("recalc enqueued", "project_id", projectID, "task_id", info.ID, "queue", info.Queue)
	return nil
}
