package project

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/shared"
)

type memoryRepo struct {
	nextID   int64
	projects map[int64]Project
	snapshot map[int64]map[int64]decimal.Decimal
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		projects: map[int64]Project{},
		snapshot: map[int64]map[int64]decimal.Decimal{},
	}
}

func (m *memoryRepo) List(_ context.Context, _ shared.ListFilters) ([]Project, int, error) {
	out := make([]Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (m *memoryRepo) Create(_ context.Context, p Project) (Project, error) {
	m.nextID++
	p.ID = m.nextID
	m.projects[p.ID] = p
	m.snapshot[p.ID] = map[int64]decimal.Decimal{}
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, p Project) error {
	existing, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	p.ID = id
	p.Status = existing.Status
	p.RegionID = existing.RegionID
	m.projects[id] = p
	return nil
}

func (m *memoryRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	p, ok := m.projects[id]
	if !ok {
		return fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	p.Status = status
	m.projects[id] = p
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("project %d: %w", id, shared.ErrNotFound)
	}
	delete(m.projects, id)
	delete(m.snapshot, id)
	return nil
}

func (m *memoryRepo) SnapshotAmounts(_ context.Context, projectID int64) (map[int64]decimal.Decimal, error) {
	return m.snapshot[projectID], nil
}

func (m *memoryRepo) SnapshotPrices(_ context.Context, projectID int64) ([]SnapshotPrice, error) {
	var prices []SnapshotPrice
	for itemID, amount := range m.snapshot[projectID] {
		prices = append(prices, SnapshotPrice{ProjectID: projectID, ItemID: itemID, Amount: amount})
	}
	return prices, nil
}

func (m *memoryRepo) UpdateSnapshotPrice(_ context.Context, projectID, itemID int64, amount decimal.Decimal) error {
	m.snapshot[projectID][itemID] = amount
	return nil
}

type recorder struct {
	recalcs     []int64
	invalidated []int64
}

func (r *recorder) EnqueueRecalc(_ context.Context, projectID int64) error {
	r.recalcs = append(r.recalcs, projectID)
	return nil
}

func (r *recorder) InvalidateRollup(_ context.Context, projectID int64) error {
	r.invalidated = append(r.invalidated, projectID)
	return nil
}

func pct(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validProject() Project {
	return Project{
		Name:        "Gedung Serbaguna",
		RegionID:    1,
		OverheadPct: pct("10"),
		ProfitPct:   pct("10"),
		TaxPct:      pct("11"),
	}
}

func TestCreateStartsAsDraft(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	created, err := svc.Create(context.Background(), validProject())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, created.Status)
}

func TestCreateRejectsPercentOutOfRange(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	p := validProject()
	p.TaxPct = pct("101")
	_, err := svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrValidation)

	p = validProject()
	p.OverheadPct = pct("-1")
	_, err = svc.Create(context.Background(), p)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestStatusLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProject())
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(ctx, created.ID, StatusActive))
	require.NoError(t, svc.UpdateStatus(ctx, created.ID, StatusCompleted))

	err = svc.UpdateStatus(ctx, created.ID, StatusActive)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestDraftCannotComplete(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProject())
	require.NoError(t, err)

	err = svc.UpdateStatus(ctx, created.ID, StatusCompleted)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestUpdateBlockedOnTerminalProject(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProject())
	require.NoError(t, err)
	require.NoError(t, svc.UpdateStatus(ctx, created.ID, StatusCancelled))

	err = svc.Update(ctx, created.ID, validProject())
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestUpdateInvalidatesRollupCache(t *testing.T) {
	rec := &recorder{}
	svc := NewService(newMemoryRepo(), rec, rec)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProject())
	require.NoError(t, err)

	require.NoError(t, svc.Update(ctx, created.ID, validProject()))
	require.Equal(t, []int64{created.ID}, rec.invalidated)
}

func TestSnapshotPriceEditEnqueuesRecalc(t *testing.T) {
	rec := &recorder{}
	svc := NewService(newMemoryRepo(), rec, rec)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProject())
	require.NoError(t, err)

	err = svc.UpdateSnapshotPrice(ctx, created.ID, 42, pct("15000.555"))
	require.NoError(t, err)
	require.Equal(t, []int64{created.ID}, rec.recalcs)

	prices, err := svc.SnapshotPrices(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	require.True(t, prices[0].Amount.Equal(pct("15000.56")), "got %s", prices[0].Amount)
}

func TestRecalculateWithoutQueueStillInvalidates(t *testing.T) {
	rec := &recorder{}
	svc := NewService(newMemoryRepo(), nil, rec)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProject())
	require.NoError(t, err)

	require.NoError(t, svc.Recalculate(ctx, created.ID))
	require.Equal(t, []int64{created.ID}, rec.invalidated)
}

func TestRecalculateUnknownProject(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	err := svc.Recalculate(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
