package boq

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/analyses"
	"github.com/rencana-app/rencana/internal/shared"
)

// ProjectGate looks up the owning project and its frozen prices.
type ProjectGate interface {
	Get(ctx context.Context, id int64) (project.Project, error)
	SnapshotAmounts(ctx context.Context, projectID int64) (map[int64]decimal.Decimal, error)
}

type Service struct {
	repo      Repository
	projects  ProjectGate
	analyses  analyses.Repository
	evaluator *Evaluator
	rollups   project.CacheInvalidator
}

func NewService(repo Repository, projects ProjectGate, analysisRepo analyses.Repository, rollups project.CacheInvalidator) *Service {
	return &Service{
		repo:      repo,
		projects:  projects,
		analyses:  analysisRepo,
		evaluator: NewEvaluator(analysisRepo),
		rollups:   rollups,
	}
}

func (s *Service) ListCategories(ctx context.Context, projectID int64) ([]Category, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, projectID)
}

func (s *Service) CreateCategory(ctx context.Context, c Category) (Category, error) {
	if err := s.ensureEditable(ctx, c.ProjectID); err != nil {
		return Category{}, err
	}
	if c.Name == "" {
		return Category{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if c.ParentID != nil {
		if err := s.validateParent(ctx, c.ProjectID, 0, *c.ParentID); err != nil {
			return Category{}, err
		}
	}
	created, err := s.repo.CreateCategory(ctx, c)
	if err != nil {
		return Category{}, err
	}
	return created, s.invalidate(ctx, c.ProjectID)
}

func (s *Service) UpdateCategory(ctx context.Context, projectID, id int64, c Category) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	existing, err := s.ownedCategory(ctx, projectID, id)
	if err != nil {
		return err
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if c.ParentID != nil {
		if err := s.validateParent(ctx, projectID, id, *c.ParentID); err != nil {
			return err
		}
	}
	c.ProjectID = existing.ProjectID
	if err := s.repo.UpdateCategory(ctx, id, c); err != nil {
		return err
	}
	return s.invalidate(ctx, projectID)
}

// DeleteCategory removes the whole subtree with its lines, atomically.
func (s *Service) DeleteCategory(ctx context.Context, projectID, id int64) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.ownedCategory(ctx, projectID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteSubtree(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, projectID)
}

// validateParent enforces the tree shape at write time: the parent must
// exist, belong to the same project, and not sit inside the subtree of
// the category being moved.
func (s *Service) validateParent(ctx context.Context, projectID, categoryID, parentID int64) error {
	if categoryID != 0 && parentID == categoryID {
		return fmt.Errorf("%w: category cannot be its own parent", shared.ErrInvalidTree)
	}
	parent, err := s.repo.GetCategory(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.ProjectID != projectID {
		return fmt.Errorf("%w: parent belongs to another project", shared.ErrInvalidTree)
	}
	if categoryID == 0 {
		return nil
	}

	cats, err := s.repo.ListCategories(ctx, projectID)
	if err != nil {
		return err
	}
	parents := make(map[int64]*int64, len(cats))
	for _, c := range cats {
		parents[c.ID] = c.ParentID
	}

	// Walk up from the proposed parent; hitting the moved category
	// means the assignment would close a cycle.
	seen := map[int64]struct{}{}
	cur := &parentID
	for cur != nil {
		if *cur == categoryID {
			return fmt.Errorf("%w: parent assignment creates a cycle", shared.ErrInvalidTree)
		}
		if _, dup := seen[*cur]; dup {
			return fmt.Errorf("%w: existing hierarchy contains a cycle", shared.ErrInvalidTree)
		}
		seen[*cur] = struct{}{}
		cur = parents[*cur]
	}
	return nil
}

// CategoryByID and LineByID exist for routes addressed by row id
// alone; callers re-dispatch into the project-scoped operations.
func (s *Service) CategoryByID(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) LineByID(ctx context.Context, id int64) (Line, error) {
	return s.repo.GetLine(ctx, id)
}

func (s *Service) ListLines(ctx context.Context, projectID int64) ([]Line, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListLines(ctx, projectID)
}

func (s *Service) GetLine(ctx context.Context, projectID, id int64) (Line, error) {
	return s.ownedLine(ctx, projectID, id)
}

func (s *Service) CreateLine(ctx context.Context, l Line) (Line, error) {
	if err := s.ensureEditable(ctx, l.ProjectID); err != nil {
		return Line{}, err
	}
	if err := s.validateLine(ctx, l); err != nil {
		return Line{}, err
	}
	evaluated, err := s.evaluate(ctx, l)
	if err != nil {
		return Line{}, err
	}
	created, err := s.repo.CreateLine(ctx, evaluated)
	if err != nil {
		return Line{}, err
	}
	return created, s.invalidate(ctx, l.ProjectID)
}

// UpdateLine applies the edit and re-evaluates in the same pass so the
// stored total can never go stale.
func (s *Service) UpdateLine(ctx context.Context, projectID, id int64, l Line) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	existing, err := s.ownedLine(ctx, projectID, id)
	if err != nil {
		return err
	}
	l.ProjectID = existing.ProjectID
	l.Kind = existing.Kind
	l.AnalysisID = existing.AnalysisID
	if err := s.validateLine(ctx, l); err != nil {
		return err
	}
	evaluated, err := s.evaluate(ctx, l)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateLine(ctx, id, evaluated); err != nil {
		return err
	}
	return s.invalidate(ctx, projectID)
}

func (s *Service) DeleteLine(ctx context.Context, projectID, id int64) error {
	if err := s.ensureEditable(ctx, projectID); err != nil {
		return err
	}
	if _, err := s.ownedLine(ctx, projectID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteLine(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, projectID)
}

// RecalculateProject re-evaluates every line against the snapshot and
// rewrites the stored amounts atomically. Run by the background job.
func (s *Service) RecalculateProject(ctx context.Context, projectID int64) error {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return err
	}
	amounts, err := s.projects.SnapshotAmounts(ctx, projectID)
	if err != nil {
		return err
	}
	lines, err := s.repo.ListLines(ctx, projectID)
	if err != nil {
		return err
	}

	lookup := ahsp.LookupFromMap(amounts)
	updates := make([]LineAmounts, 0, len(lines))
	for _, line := range lines {
		evaluated, err := s.evaluator.Evaluate(ctx, line, lookup)
		if err != nil {
			return fmt.Errorf("recalculate line %d: %w", line.ID, err)
		}
		updates = append(updates, LineAmounts{
			LineID:     line.ID,
			UnitPrice:  evaluated.UnitPrice,
			TotalPrice: evaluated.TotalPrice,
			Unpriced:   evaluated.Unpriced,
		})
	}
	if err := s.repo.RewriteLineAmounts(ctx, updates); err != nil {
		return err
	}
	return s.invalidate(ctx, projectID)
}

func (s *Service) evaluate(ctx context.Context, l Line) (Line, error) {
	amounts, err := s.projects.SnapshotAmounts(ctx, l.ProjectID)
	if err != nil {
		return Line{}, err
	}
	return s.evaluator.Evaluate(ctx, l, ahsp.LookupFromMap(amounts))
}

func (s *Service) validateLine(ctx context.Context, l Line) error {
	if !l.Kind.Valid() {
		return fmt.Errorf("%w: unknown line kind %q", shared.ErrValidation, l.Kind)
	}
	if l.Volume.IsNegative() {
		return fmt.Errorf("%w: volume must not be negative", shared.ErrValidation)
	}
	if l.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price must not be negative", shared.ErrValidation)
	}
	if _, err := s.ownedCategory(ctx, l.ProjectID, l.CategoryID); err != nil {
		return err
	}
	if l.Derived() {
		if l.AnalysisID == nil {
			return fmt.Errorf("%w: derived line requires analysis_id", shared.ErrValidation)
		}
		a, err := s.analyses.Get(ctx, *l.AnalysisID)
		if err != nil {
			return err
		}
		if a.ProjectID != l.ProjectID {
			return fmt.Errorf("%w: analysis belongs to another project", shared.ErrValidation)
		}
	}
	return nil
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

func (s *Service) ownedCategory(ctx context.Context, projectID, id int64) (Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return Category{}, err
	}
	if c.ProjectID != projectID {
		return Category{}, fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (s *Service) ownedLine(ctx context.Context, projectID, id int64) (Line, error) {
	l, err := s.repo.GetLine(ctx, id)
	if err != nil {
		return Line{}, err
	}
	if l.ProjectID != projectID {
		return Line{}, fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
	}
	return l, nil
}

func (s *Service) invalidate(ctx context.Context, projectID int64) error {
	if s.rollups == nil {
		return nil
	}
	return s.rollups.InvalidateRollup(ctx, projectID)
}
