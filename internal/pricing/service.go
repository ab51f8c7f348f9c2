package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/shared"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *Service) ListByRegion(ctx context.Context, regionID int64) ([]ItemPrice, error) {
	if regionID <= 0 {
		return nil, fmt.Errorf("%w: invalid region id", shared.ErrValidation)
	}
	return s.repo.ListByRegion(ctx, regionID)
}

func (s *Service) Get(ctx context.Context, id int64) (ItemPrice, error) {
	if id <= 0 {
		return ItemPrice{}, fmt.Errorf("%w: invalid price id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, price ItemPrice) (ItemPrice, error) {
	if err := s.validate(price); err != nil {
		return ItemPrice{}, err
	}
	return s.repo.Create(ctx, price)
}

func (s *Service) Update(ctx context.Context, id int64, price ItemPrice) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid price id", shared.ErrValidation)
	}
	if err := s.validate(price); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, price)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid price id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

// CurrentAmounts returns the effective amount per item for a region at
// the current instant. Used to seed project snapshots and for master
// analysis previews.
func (s *Service) CurrentAmounts(ctx context.Context, regionID int64) (map[int64]decimal.Decimal, error) {
	if regionID <= 0 {
		return nil, fmt.Errorf("%w: invalid region id", shared.ErrValidation)
	}
	return s.repo.EffectiveAmounts(ctx, regionID, s.now())
}

// Overlaps lists active price pairs with intersecting windows. The
// effective pick stays deterministic either way; the sweep only flags
// the ambiguity for operators.
func (s *Service) Overlaps(ctx context.Context) ([]Overlap, error) {
	return s.repo.Overlaps(ctx)
}

func (s *Service) validate(price ItemPrice) error {
	if price.ItemID <= 0 {
		return fmt.Errorf("%w: item is required", shared.ErrValidation)
	}
	if price.RegionID <= 0 {
		return fmt.Errorf("%w: region is required", shared.ErrValidation)
	}
	if price.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if price.EffectiveFrom != nil && price.EffectiveTo != nil && price.EffectiveTo.Before(*price.EffectiveFrom) {
		return fmt.Errorf("%w: effective_to before effective_from", shared.ErrValidation)
	}
	return nil
}
