package boq

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/masterdata/items"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/project/analyses"
	"github.com/rencana-app/rencana/internal/shared"
)

type memoryRepo struct {
	nextID     int64
	categories map[int64]Category
	lines      map[int64]Line
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{categories: map[int64]Category{}, lines: map[int64]Line{}}
}

func (m *memoryRepo) ListCategories(_ context.Context, projectID int64) ([]Category, error) {
	var out []Category
	for _, c := range m.categories {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetCategory(_ context.Context, id int64) (Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return Category{}, fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (m *memoryRepo) CreateCategory(_ context.Context, c Category) (Category, error) {
	m.nextID++
	c.ID = m.nextID
	m.categories[c.ID] = c
	return c, nil
}

func (m *memoryRepo) UpdateCategory(_ context.Context, id int64, c Category) error {
	existing, ok := m.categories[id]
	if !ok {
		return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	c.ID = id
	c.ProjectID = existing.ProjectID
	m.categories[id] = c
	return nil
}

func (m *memoryRepo) DeleteSubtree(_ context.Context, id int64) error {
	if _, ok := m.categories[id]; !ok {
		return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	doomed := map[int64]struct{}{id: {}}
	for changed := true; changed; {
		changed = false
		for _, c := range m.categories {
			if _, dead := doomed[c.ID]; dead || c.ParentID == nil {
				continue
			}
			if _, parentDead := doomed[*c.ParentID]; parentDead {
				doomed[c.ID] = struct{}{}
				changed = true
			}
		}
	}
	for cid := range doomed {
		delete(m.categories, cid)
		for lid, l := range m.lines {
			if l.CategoryID == cid {
				delete(m.lines, lid)
			}
		}
	}
	return nil
}

func (m *memoryRepo) ListLines(_ context.Context, projectID int64) ([]Line, error) {
	var out []Line
	for _, l := range m.lines {
		if l.ProjectID == projectID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListLinesByCategory(_ context.Context, categoryID int64) ([]Line, error) {
	var out []Line
	for _, l := range m.lines {
		if l.CategoryID == categoryID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetLine(_ context.Context, id int64) (Line, error) {
	l, ok := m.lines[id]
	if !ok {
		return Line{}, fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
	}
	return l, nil
}

func (m *memoryRepo) CreateLine(_ context.Context, l Line) (Line, error) {
	m.nextID++
	l.ID = m.nextID
	m.lines[l.ID] = l
	return l, nil
}

func (m *memoryRepo) UpdateLine(_ context.Context, id int64, l Line) error {
	existing, ok := m.lines[id]
	if !ok {
		return fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
	}
	l.ID = id
	l.ProjectID = existing.ProjectID
	m.lines[id] = l
	return nil
}

func (m *memoryRepo) DeleteLine(_ context.Context, id int64) error {
	if _, ok := m.lines[id]; !ok {
		return fmt.Errorf("boq line %d: %w", id, shared.ErrNotFound)
	}
	delete(m.lines, id)
	return nil
}

func (m *memoryRepo) RewriteLineAmounts(_ context.Context, updates []LineAmounts) error {
	for _, u := range updates {
		l := m.lines[u.LineID]
		l.UnitPrice = u.UnitPrice
		l.TotalPrice = u.TotalPrice
		l.Unpriced = u.Unpriced
		m.lines[u.LineID] = l
	}
	return nil
}

type stubGate struct {
	projects map[int64]project.Project
	amounts  map[int64]map[int64]decimal.Decimal
}

func (g *stubGate) Get(_ context.Context, id int64) (project.Project, error) {
	p, ok := g.projects[id]
	if !ok {
		return project.Project{}, fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (g *stubGate) SnapshotAmounts(_ context.Context, projectID int64) (map[int64]decimal.Decimal, error) {
	return g.amounts[projectID], nil
}

type stubAnalyses struct {
	byID map[int64]analyses.ProjectAnalysis
}

func (s *stubAnalyses) ListByProject(_ context.Context, _ int64) ([]analyses.ProjectAnalysis, error) {
	return nil, nil
}

func (s *stubAnalyses) Get(_ context.Context, id int64) (analyses.ProjectAnalysis, error) {
	a, ok := s.byID[id]
	if !ok {
		return analyses.ProjectAnalysis{}, fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func (s *stubAnalyses) AnalysisWithEntries(ctx context.Context, id int64) (ahsp.Analysis, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return ahsp.Analysis{}, err
	}
	return ahsp.Analysis{ID: a.ID, Code: a.Code, Name: a.Name, UnitID: a.UnitID, Entries: a.Entries}, nil
}

func (s *stubAnalyses) CreateCustom(_ context.Context, a analyses.ProjectAnalysis) (analyses.ProjectAnalysis, error) {
	return a, nil
}

func (s *stubAnalyses) CopyFromMaster(_ context.Context, _, _ int64) (analyses.ProjectAnalysis, error) {
	return analyses.ProjectAnalysis{}, nil
}

func (s *stubAnalyses) SyncFromMaster(_ context.Context, _ int64) error { return nil }

func (s *stubAnalyses) ReplaceEntries(_ context.Context, _ int64, _ []ahsp.CompositionEntry) error {
	return nil
}

func (s *stubAnalyses) Delete(_ context.Context, _ int64) error { return nil }

func (s *stubAnalyses) LineReferences(_ context.Context, _ int64) (int, error) { return 0, nil }

type cacheSpy struct {
	dropped []int64
}

func (c *cacheSpy) InvalidateRollup(_ context.Context, projectID int64) error {
	c.dropped = append(c.dropped, projectID)
	return nil
}

func fixture() (*Service, *memoryRepo, *stubGate, *stubAnalyses, *cacheSpy) {
	repo := newMemoryRepo()
	gate := &stubGate{
		projects: map[int64]project.Project{
			1: {ID: 1, Status: project.StatusActive},
			2: {ID: 2, Status: project.StatusActive},
		},
		amounts: map[int64]map[int64]decimal.Decimal{1: {}},
	}
	ana := &stubAnalyses{byID: map[int64]analyses.ProjectAnalysis{}}
	spy := &cacheSpy{}
	return NewService(repo, gate, ana, spy), repo, gate, ana, spy
}

func TestCreateCategoryRejectsForeignParent(t *testing.T) {
	svc, _, _, _, _ := fixture()
	ctx := context.Background()

	other, err := svc.CreateCategory(ctx, Category{ProjectID: 2, Name: "Struktur"})
	require.NoError(t, err)

	_, err = svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "Pondasi", ParentID: &other.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTree)
}

func TestUpdateCategoryRejectsSelfParent(t *testing.T) {
	svc, _, _, _, _ := fixture()
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "Struktur"})
	require.NoError(t, err)

	err = svc.UpdateCategory(ctx, 1, c.ID, Category{Name: "Struktur", ParentID: &c.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTree)
}

func TestUpdateCategoryRejectsCycle(t *testing.T) {
	svc, _, _, _, _ := fixture()
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "A"})
	require.NoError(t, err)
	mid, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "B", ParentID: &root.ID})
	require.NoError(t, err)
	leaf, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "C", ParentID: &mid.ID})
	require.NoError(t, err)

	// Re-parenting the root under its own grandchild must fail.
	err = svc.UpdateCategory(ctx, 1, root.ID, Category{Name: "A", ParentID: &leaf.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTree)
}

func TestDeleteCategoryRemovesSubtreeAndLines(t *testing.T) {
	svc, repo, _, _, _ := fixture()
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "A"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "B", ParentID: &root.ID})
	require.NoError(t, err)
	_, err = svc.CreateLine(ctx, Line{
		ProjectID: 1, CategoryID: child.ID, Kind: KindCustom,
		Name: "Urugan", Volume: dec("1.0000"), UnitPrice: dec("1000.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCategory(ctx, 1, root.ID))
	require.Empty(t, repo.categories)
	require.Empty(t, repo.lines)
}

func TestCreateCustomLineMaintainsTotalInvariant(t *testing.T) {
	svc, _, _, _, spy := fixture()
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "Pekerjaan Tanah"})
	require.NoError(t, err)

	created, err := svc.CreateLine(ctx, Line{
		ProjectID: 1, CategoryID: cat.ID, Kind: KindCustom,
		Name: "Galian", Volume: dec("2.5000"), UnitPrice: dec("100000.00"),
	})
	require.NoError(t, err)
	require.True(t, created.TotalPrice.Equal(dec("250000.00")), "got %s", created.TotalPrice)
	require.NotEmpty(t, spy.dropped)
}

func TestCreateDerivedLineResolvesSnapshot(t *testing.T) {
	svc, _, gate, ana, _ := fixture()
	ctx := context.Background()

	gate.amounts[1] = map[int64]decimal.Decimal{10: dec("15000.00")}
	ana.byID[7] = analyses.ProjectAnalysis{
		ID: 7, ProjectID: 1, Code: "A.1", Name: "Pasangan", UnitID: 1,
		Entries: []ahsp.CompositionEntry{
			{ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("0.3000")},
		},
	}

	cat, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "Pasangan"})
	require.NoError(t, err)

	aid := int64(7)
	created, err := svc.CreateLine(ctx, Line{
		ProjectID: 1, CategoryID: cat.ID, Kind: KindDerived, AnalysisID: &aid,
		Name: "Pasangan bata", Volume: dec("10.0000"),
	})
	require.NoError(t, err)
	require.True(t, created.UnitPrice.Equal(dec("4500.00")))
	require.True(t, created.TotalPrice.Equal(dec("45000.00")))
}

func TestCreateDerivedLineRejectsForeignAnalysis(t *testing.T) {
	svc, _, _, ana, _ := fixture()
	ctx := context.Background()

	ana.byID[7] = analyses.ProjectAnalysis{ID: 7, ProjectID: 2}
	cat, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "Pasangan"})
	require.NoError(t, err)

	aid := int64(7)
	_, err = svc.CreateLine(ctx, Line{
		ProjectID: 1, CategoryID: cat.ID, Kind: KindDerived, AnalysisID: &aid,
		Name: "x", Volume: dec("1.0000"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecalculateProjectRewritesDerivedTotals(t *testing.T) {
	svc, repo, gate, ana, spy := fixture()
	ctx := context.Background()

	gate.amounts[1] = map[int64]decimal.Decimal{10: dec("1000.00")}
	ana.byID[7] = analyses.ProjectAnalysis{
		ID: 7, ProjectID: 1,
		Entries: []ahsp.CompositionEntry{
			{ItemID: 10, Category: items.CategoryLabor, Coefficient: dec("1.0000")},
		},
	}
	cat, err := svc.CreateCategory(ctx, Category{ProjectID: 1, Name: "Pekerjaan"})
	require.NoError(t, err)
	aid := int64(7)
	created, err := svc.CreateLine(ctx, Line{
		ProjectID: 1, CategoryID: cat.ID, Kind: KindDerived, AnalysisID: &aid,
		Name: "x", Volume: dec("2.0000"),
	})
	require.NoError(t, err)
	require.True(t, created.TotalPrice.Equal(dec("2000.00")))

	gate.amounts[1][10] = dec("1500.00")
	require.NoError(t, svc.RecalculateProject(ctx, 1))

	after, err := repo.GetLine(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, after.UnitPrice.Equal(dec("1500.00")))
	require.True(t, after.TotalPrice.Equal(dec("3000.00")))
	require.Contains(t, spy.dropped, int64(1))
}

func TestLineMutationsBlockedOnCompletedProject(t *testing.T) {
	svc, _, gate, _, _ := fixture()
	gate.projects[1] = project.Project{ID: 1, Status: project.StatusCompleted}

	_, err := svc.CreateCategory(context.Background(), Category{ProjectID: 1, Name: "x"})
	require.ErrorIs(t, err, shared.ErrImmutable)
}
