package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rencana-app/rencana/internal/pricing"
)

// OverlapSource lists conflicting price windows. Satisfied by
// pricing.Service.
type OverlapSource interface {
	Overlaps(ctx context.Context) ([]pricing.Overlap, error)
}

// NewPricingSweepHandler returns the handler for the nightly sweep. It
// only reports; the effective-price pick stays deterministic even when
// windows overlap.
func NewPricingSweepHandler(logger *slog.Logger, prices OverlapSource) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		overlaps, err := prices.Overlaps(ctx)
		if err != nil {
			logger.Error("pricing sweep failed", "error", err)
			return err
		}
		if len(overlaps) == 0 {
			logger.Info("pricing sweep clean")
			return nil
		}
		for _, o := range overlaps {
			logger.Warn("overlapping price windows",
				"item_id", o.ItemID,
				"region_id", o.RegionID,
				"price_ids", []int64{o.FirstID, o.SecondID})
		}
		logger.Info("pricing sweep done", "overlaps", len(overlaps))
		return nil
	}
}
