package analyses

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/shared"
)

// ProjectGate looks up the owning project and its frozen prices.
// Satisfied by the project service.
type ProjectGate interface {
	Get(ctx context.Context, id int64) (project.Project, error)
	SnapshotAmounts(ctx context.Context, projectID int64) (map[int64]decimal.Decimal, error)
	Recalculate(ctx context.Context, projectID int64) error
}

type Service struct {
	repo     Repository
	projects ProjectGate
	resolver *ahsp.Resolver
}

func NewService(repo Repository, projects ProjectGate) *Service {
	return &Service{repo: repo, projects: projects, resolver: ahsp.NewResolver(repo)}
}

func (s *Service) List(ctx context.Context, projectID int64) ([]ProjectAnalysis, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) Get(ctx context.Context, projectID, id int64) (ProjectAnalysis, error) {
	return s.owned(ctx, projectID, id)
}

func (s *Service) CreateCustom(ctx context.Context, a ProjectAnalysis) (ProjectAnalysis, error) {
	if err := s.ensureEditable(ctx, a.ProjectID); err != nil {
		return ProjectAnalysis{}, err
	}
	if a.Code == "" || a.Name == "" {
		return ProjectAnalysis{}, fmt.Errorf("%w: code and name are required", shared.ErrValidation)
	}
	if a.UnitID <= 0 {
		return ProjectAnalysis{}, fmt.Errorf("%w: unit is required", shared.ErrValidation)
	}
	return s.repo.CreateCustom(ctx, a)
}

func (s *Service) CopyFromMaster(ctx context.Context, projectID, masterID int64) (ProjectAnalysis, error) {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return ProjectAnalysis{}, err
	}
	if masterID <= 0 {
		return ProjectAnalysis{}, fmt.Errorf("%w: master analysis id is required", shared.ErrValidation)
	}
	return s.repo.CopyFromMaster(ctx, projectID, masterID)
}

// Sync re-copies the master composition over a frozen copy and queues
// a recalculation, since derived line totals may shift.
func (s *Service) Sync(ctx context.Context, projectID, id int64) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	a, err := s.owned(ctx, projectID, id)
	if err != nil {
		return err
	}
	if a.Custom() {
		return fmt.Errorf("%w: custom analysis has no master source", shared.ErrValidation)
	}
	if err := s.repo.SyncFromMaster(ctx, id); err != nil {
		return err
	}
	return s.projects.Recalculate(ctx, projectID)
}

// ReplaceEntries swaps a custom analysis composition. Frozen master
// copies only change through Sync.
func (s *Service) ReplaceEntries(ctx context.Context, projectID, id int64, entries []ahsp.CompositionEntry) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	a, err := s.owned(ctx, projectID, id)
	if err != nil {
		return err
	}
	if !a.Custom() {
		return fmt.Errorf("%w: analysis is a frozen master copy, use sync", shared.ErrImmutable)
	}
	for _, e := range entries {
		if err := ahsp.ValidateEntry(e); err != nil {
			return err
		}
	}
	if err := s.repo.ReplaceEntries(ctx, id, entries); err != nil {
		return err
	}
	return s.projects.Recalculate(ctx, projectID)
}

func (s *Service) Delete(ctx context.Context, projectID, id int64) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.owned(ctx, projectID, id); err != nil {
		return err
	}
	refs, err := s.repo.LineReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: analysis is referenced by %d BOQ lines", shared.ErrImmutable, refs)
	}
	return s.repo.Delete(ctx, id)
}

// Resolve prices the analysis against the project snapshot.
func (s *Service) Resolve(ctx context.Context, projectID, id int64) (ahsp.Resolution, error) {
	if _, err := s.owned(ctx, projectID, id); err != nil {
		return ahsp.Resolution{}, err
	}
	amounts, err := s.projects.SnapshotAmounts(ctx, projectID)
	if err != nil {
		return ahsp.Resolution{}, err
	}
	return s.resolver.Resolve(ctx, id, ahsp.LookupFromMap(amounts))
}

func (s *Service) ensureEditable(ctx context.Context, projectID int64) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if p.Status == project.StatusCompleted || p.Status == project.StatusCancelled {
		return fmt.Errorf("%w: project is %s", shared.ErrImmutable, p.Status)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, projectID, id int64) (ProjectAnalysis, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProjectAnalysis{}, err
	}
	if a.ProjectID != projectID {
		return ProjectAnalysis{}, fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}
