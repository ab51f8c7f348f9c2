package items

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/shared"
)

type memoryRepo struct {
	items  map[int64]Item
	refs   map[int64]int
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item), refs: make(map[int64]int)}
}

func (r *memoryRepo) List(_ context.Context, filters ListFilters) ([]Item, int, error) {
	var out []Item
	for _, it := range r.items {
		if filters.Category != "" && it.Category != filters.Category {
			continue
		}
		out = append(out, it)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Item, error) {
	it, ok := r.items[id]
	if !ok {
		return Item{}, shared.ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) Create(_ context.Context, item Item) (Item, error) {
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, item Item) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	item.ID = id
	r.items[id] = item
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) ReferenceCount(_ context.Context, id int64) (int, error) {
	return r.refs[id], nil
}

func TestCreateRejectsUnknownCategory(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Create(context.Background(), Item{Code: "PC001", Name: "Semen", Category: "fuel", UnitID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateBlockedWhenReferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Item{Code: "M001", Name: "Semen Portland", Category: CategoryMaterial, UnitID: 1})
	require.NoError(t, err)

	repo.refs[created.ID] = 3

	err = svc.Update(context.Background(), created.ID, Item{Code: "M001", Name: "Renamed", Category: CategoryMaterial, UnitID: 1})
	require.ErrorIs(t, err, shared.ErrImmutable)

	err = svc.Delete(context.Background(), created.ID)
	require.ErrorIs(t, err, shared.ErrImmutable)
}

func TestUpdateAllowedWhenUnreferenced(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Item{Code: "L001", Name: "Pekerja", Category: CategoryLabor, UnitID: 2})
	require.NoError(t, err)

	err = svc.Update(context.Background(), created.ID, Item{Code: "L001", Name: "Pekerja Terampil", Category: CategoryLabor, UnitID: 2})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "Pekerja Terampil", got.Name)
}
