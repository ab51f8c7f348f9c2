package project

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/money"
	"github.com/rencana-app/rencana/internal/shared"
)

// Recalcer enqueues a full-project recalculation. Implemented by the
// jobs client; a nil Recalcer disables background recalculation.
type Recalcer interface {
	EnqueueRecalc(ctx context.Context, projectID int64) error
}

// CacheInvalidator drops a project's cached rollup. Implemented by the
// rollup service.
type CacheInvalidator interface {
	InvalidateRollup(ctx context.Context, projectID int64) error
}

type Service struct {
	repo    Repository
	recalc  Recalcer
	rollups CacheInvalidator
	audit   *shared.AuditLogger
}

func NewService(repo Repository, recalc Recalcer, rollups CacheInvalidator) *Service {
	return &Service{repo: repo, recalc: recalc, rollups: rollups}
}

// WithAudit enables audit records for lifecycle and snapshot mutations.
func (s *Service) WithAudit(audit *shared.AuditLogger) {
	s.audit = audit
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorIDFromContext(ctx),
		Action:   action,
		Entity:   "project",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	if id <= 0 {
		return Project{}, fmt.Errorf("%w: invalid project id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, p Project) (Project, error) {
	if err := validateProject(p); err != nil {
		return Project{}, err
	}
	if p.RegionID <= 0 {
		return Project{}, fmt.Errorf("%w: region is required", shared.ErrValidation)
	}
	p.Status = StatusDraft
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, "project.create", created.ID, map[string]any{"region_id": created.RegionID})
	return created, nil
}

// Update changes the project head fields. The cascade percentages feed
// the rollup on read, so a cache drop is enough; line totals stay valid.
func (s *Service) Update(ctx context.Context, id int64, p Project) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(existing); err != nil {
		return err
	}
	if err := validateProject(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, p); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, next)
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Status.CanTransition(next) {
		return fmt.Errorf("%w: cannot move project from %s to %s", shared.ErrImmutable, existing.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return err
	}
	s.recordAudit(ctx, "project.status", id, map[string]any{"from": existing.Status, "to": next})
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid project id", shared.ErrValidation)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

// SnapshotAmounts exposes the frozen item→amount map; derived line
// evaluation and rollup read prices exclusively through it.
func (s *Service) SnapshotAmounts(ctx context.Context, projectID int64) (map[int64]decimal.Decimal, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: invalid project id", shared.ErrValidation)
	}
	return s.repo.SnapshotAmounts(ctx, projectID)
}

func (s *Service) SnapshotPrices(ctx context.Context, projectID int64) ([]SnapshotPrice, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.SnapshotPrices(ctx, projectID)
}

// UpdateSnapshotPrice overrides one frozen price for the project.
// Derived line totals go stale, so a recalculation is enqueued.
func (s *Service) UpdateSnapshotPrice(ctx context.Context, projectID, itemID int64, amount decimal.Decimal) error {
	existing, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.ensureEditable(existing); err != nil {
		return err
	}
	if itemID <= 0 {
		return fmt.Errorf("%w: invalid item id", shared.ErrValidation)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", shared.ErrValidation)
	}
	if err := s.repo.UpdateSnapshotPrice(ctx, projectID, itemID, money.Round(amount)); err != nil {
		return err
	}
	s.recordAudit(ctx, "project.snapshot_price", projectID, map[string]any{
		"item_id": itemID,
		"amount":  money.Round(amount).String(),
	})
	return s.Recalculate(ctx, projectID)
}

// Recalculate enqueues the background job that re-evaluates every
// derived line against the snapshot and drops the cached rollup.
func (s *Service) Recalculate(ctx context.Context, projectID int64) error {
	if _, err := s.Get(ctx, projectID); err != nil {
		return err
	}
	if s.recalc == nil {
		return s.invalidate(ctx, projectID)
	}
	return s.recalc.EnqueueRecalc(ctx, projectID)
}

func (s *Service) ensureEditable(p Project) error {
	if p.Status == StatusCompleted || p.Status == StatusCancelled {
		return fmt.Errorf("%w: project is %s", shared.ErrImmutable, p.Status)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, projectID int64) error {
	if s.rollups == nil {
		return nil
	}
	return s.rollups.InvalidateRollup(ctx, projectID)
}

func validateProject(p Project) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	for _, pct := range []decimal.Decimal{p.OverheadPct, p.ProfitPct, p.TaxPct} {
		if !money.ValidPercent(pct) {
			return fmt.Errorf("%w: percentages must lie in [0,100]", shared.ErrValidation)
		}
	}
	return nil
}
