package analyses

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/ahsp"
	"github.com/rencana-app/rencana/internal/masterdata/items"
	"github.com/rencana-app/rencana/internal/project"
	"github.com/rencana-app/rencana/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	analyses map[int64]ProjectAnalysis
	refs     map[int64]int
	synced   []int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{analyses: map[int64]ProjectAnalysis{}, refs: map[int64]int{}}
}

func (m *memoryRepo) ListByProject(_ context.Context, projectID int64) ([]ProjectAnalysis, error) {
	var out []ProjectAnalysis
	for _, a := range m.analyses {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (ProjectAnalysis, error) {
	a, ok := m.analyses[id]
	if !ok {
		return ProjectAnalysis{}, fmt.Errorf("project analysis %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func (m *memoryRepo) AnalysisWithEntries(ctx context.Context, id int64) (ahsp.Analysis, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return ahsp.Analysis{}, err
	}
	return ahsp.Analysis{ID: a.ID, Code: a.Code, Name: a.Name, UnitID: a.UnitID, Entries: a.Entries}, nil
}

func (m *memoryRepo) CreateCustom(_ context.Context, a ProjectAnalysis) (ProjectAnalysis, error) {
	m.nextID++
	a.ID = m.nextID
	a.SourceID = nil
	m.analyses[a.ID] = a
	return a, nil
}

func (m *memoryRepo) CopyFromMaster(_ context.Context, projectID, masterID int64) (ProjectAnalysis, error) {
	m.nextID++
	a := ProjectAnalysis{ID: m.nextID, ProjectID: projectID, SourceID: &masterID, Code: "M", Name: "copy", UnitID: 1}
	m.analyses[a.ID] = a
	return a, nil
}

func (m *memoryRepo) SyncFromMaster(_ context.Context, id int64) error {
	m.synced = append(m.synced, id)
	return nil
}

func (m *memoryRepo) ReplaceEntries(_ context.Context, id int64, entries []ahsp.CompositionEntry) error {
	a := m.analyses[id]
	a.Entries = entries
	m.analyses[id] = a
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.analyses, id)
	return nil
}

func (m *memoryRepo) LineReferences(_ context.Context, id int64) (int, error) {
	return m.refs[id], nil
}

type stubGate struct {
	projects map[int64]project.Project
	amounts  map[int64]decimal.Decimal
	recalcs  []int64
}

func (g *stubGate) Get(_ context.Context, id int64) (project.Project, error) {
	p, ok := g.projects[id]
	if !ok {
		return project.Project{}, fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (g *stubGate) SnapshotAmounts(_ context.Context, _ int64) (map[int64]decimal.Decimal, error) {
	return g.amounts, nil
}

func (g *stubGate) Recalculate(_ context.Context, projectID int64) error {
	g.recalcs = append(g.recalcs, projectID)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func activeGate() *stubGate {
	return &stubGate{projects: map[int64]project.Project{
		1: {ID: 1, Status: project.StatusActive},
	}}
}

func TestReplaceEntriesOnFrozenCopyRejected(t *testing.T) {
	repo := newMemoryRepo()
	gate := activeGate()
	svc := NewService(repo, gate)
	ctx := context.Background()

	copied, err := svc.CopyFromMaster(ctx, 1, 7)
	require.NoError(t, err)

	err = svc.ReplaceEntries(ctx, 1, copied.ID, nil)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestReplaceEntriesOnCustomTriggersRecalc(t *testing.T) {
	repo := newMemoryRepo()
	gate := activeGate()
	svc := NewService(repo, gate)
	ctx := context.Background()

	custom, err := svc.CreateCustom(ctx, ProjectAnalysis{ProjectID: 1, Code: "C.1", Name: "Galian", UnitID: 2})
	require.NoError(t, err)

	entries := []ahsp.CompositionEntry{
		{ItemID: 10, Category: items.CategoryLabor, Coefficient: dec("0.5000")},
	}
	require.NoError(t, svc.ReplaceEntries(ctx, 1, custom.ID, entries))
	require.Equal(t, []int64{1}, gate.recalcs)
}

func TestSyncCustomAnalysisRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, activeGate())
	ctx := context.Background()

	custom, err := svc.CreateCustom(ctx, ProjectAnalysis{ProjectID: 1, Code: "C.1", Name: "Galian", UnitID: 2})
	require.NoError(t, err)

	err = svc.Sync(ctx, 1, custom.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.synced)
}

func TestSyncFrozenCopyRecalculates(t *testing.T) {
	repo := newMemoryRepo()
	gate := activeGate()
	svc := NewService(repo, gate)
	ctx := context.Background()

	copied, err := svc.CopyFromMaster(ctx, 1, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Sync(ctx, 1, copied.ID))
	require.Equal(t, []int64{copied.ID}, repo.synced)
	require.Equal(t, []int64{1}, gate.recalcs)
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, activeGate())
	ctx := context.Background()

	custom, err := svc.CreateCustom(ctx, ProjectAnalysis{ProjectID: 1, Code: "C.1", Name: "Galian", UnitID: 2})
	require.NoError(t, err)
	repo.refs[custom.ID] = 3

	err = svc.Delete(ctx, 1, custom.ID)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestCrossProjectAccessIsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	gate := activeGate()
	gate.projects[2] = project.Project{ID: 2, Status: project.StatusActive}
	svc := NewService(repo, gate)
	ctx := context.Background()

	custom, err := svc.CreateCustom(ctx, ProjectAnalysis{ProjectID: 1, Code: "C.1", Name: "Galian", UnitID: 2})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, custom.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMutationsBlockedOnCompletedProject(t *testing.T) {
	repo := newMemoryRepo()
	gate := &stubGate{projects: map[int64]project.Project{
		1: {ID: 1, Status: project.StatusCompleted},
	}}
	svc := NewService(repo, gate)

	_, err := svc.CreateCustom(context.Background(), ProjectAnalysis{ProjectID: 1, Code: "C.1", Name: "X", UnitID: 1})
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestResolveUsesProjectSnapshot(t *testing.T) {
	repo := newMemoryRepo()
	gate := activeGate()
	gate.amounts = map[int64]decimal.Decimal{10: dec("20000.00")}
	svc := NewService(repo, gate)
	ctx := context.Background()

	custom, err := svc.CreateCustom(ctx, ProjectAnalysis{ProjectID: 1, Code: "C.1", Name: "Galian", UnitID: 2})
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceEntries(ctx, 1, custom.ID, []ahsp.CompositionEntry{
		{ItemID: 10, Category: items.CategoryLabor, Coefficient: dec("0.7500")},
	}))

	res, err := svc.Resolve(ctx, 1, custom.ID)
	require.NoError(t, err)
	require.True(t, res.UnitPrice.Equal(dec("15000.00")), "got %s", res.UnitPrice)
}
