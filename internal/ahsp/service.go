package ahsp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/shared"
)

// PriceSource supplies currently effective region prices for master
// analysis previews. Satisfied by the pricing service.
type PriceSource interface {
	CurrentAmounts(ctx context.Context, regionID int64) (map[int64]decimal.Decimal, error)
}

type Service struct {
	repo     Repository
	prices   PriceSource
	resolver *Resolver
	audit    *shared.AuditLogger
}

func NewService(repo Repository, prices PriceSource) *Service {
	return &Service{repo: repo, prices: prices, resolver: NewResolver(repo)}
}

// WithAudit enables audit records for composition replacements.
func (s *Service) WithAudit(audit *shared.AuditLogger) {
	s.audit = audit
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Analysis, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Analysis, error) {
	if id <= 0 {
		return Analysis{}, fmt.Errorf("%w: invalid analysis id", shared.ErrValidation)
	}
	return s.repo.AnalysisWithEntries(ctx, id)
}

func (s *Service) Create(ctx context.Context, analysis Analysis) (Analysis, error) {
	if err := validateAnalysis(analysis); err != nil {
		return Analysis{}, err
	}
	return s.repo.Create(ctx, analysis)
}

func (s *Service) Update(ctx context.Context, id int64, analysis Analysis) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid analysis id", shared.ErrValidation)
	}
	if err := validateAnalysis(analysis); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, analysis)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid analysis id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ReplaceEntries(ctx context.Context, analysisID int64, entries []CompositionEntry) error {
	if analysisID <= 0 {
		return fmt.Errorf("%w: invalid analysis id", shared.ErrValidation)
	}
	for _, e := range entries {
		if err := ValidateEntry(e); err != nil {
			return err
		}
	}
	if err := s.repo.ReplaceEntries(ctx, analysisID, entries); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorIDFromContext(ctx),
			Action:   "ahsp.replace_entries",
			Entity:   "ahsp_analysis",
			EntityID: strconv.FormatInt(analysisID, 10),
			Meta:     map[string]any{"entries": len(entries)},
		})
	}
	return nil
}

// Preview resolves a master analysis against a region's currently
// effective price list. Projects resolve against their own snapshot
// instead; this exists so catalog editors can sanity-check a
// composition before it is copied anywhere.
func (s *Service) Preview(ctx context.Context, analysisID, regionID int64) (Resolution, error) {
	if regionID <= 0 {
		return Resolution{}, fmt.Errorf("%w: region_id is required", shared.ErrValidation)
	}
	amounts, err := s.prices.CurrentAmounts(ctx, regionID)
	if err != nil {
		return Resolution{}, err
	}
	return s.resolver.Resolve(ctx, analysisID, LookupFromMap(amounts))
}

// ValidateEntry checks one composition row. Coefficients must be
// non-negative; the item reference is verified by the database.
func ValidateEntry(e CompositionEntry) error {
	if e.ItemID <= 0 {
		return fmt.Errorf("%w: entry item is required", shared.ErrValidation)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: unknown entry category %q", shared.ErrValidation, e.Category)
	}
	if e.Coefficient.IsNegative() {
		return fmt.Errorf("%w: coefficient must not be negative", shared.ErrValidation)
	}
	return nil
}

func validateAnalysis(a Analysis) error {
	if a.Code == "" || a.Name == "" {
		return fmt.Errorf("%w: code and name are required", shared.ErrValidation)
	}
	if a.UnitID <= 0 {
		return fmt.Errorf("%w: unit is required", shared.ErrValidation)
	}
	return nil
}
