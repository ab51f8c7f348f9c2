package ahsp

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/masterdata/items"
	"github.com/rencana-app/rencana/internal/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memoryLoader struct {
	analyses map[int64]Analysis
}

func (m *memoryLoader) AnalysisWithEntries(_ context.Context, id int64) (Analysis, error) {
	a, ok := m.analyses[id]
	if !ok {
		return Analysis{}, fmt.Errorf("analysis %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func TestResolveEmptyComposition(t *testing.T) {
	res := ResolveEntries(1, nil, LookupFromMap(nil))

	require.True(t, res.UnitPrice.IsZero())
	require.Empty(t, res.Breakdown)
	require.False(t, res.Incomplete())
}

func TestResolveEntryContributionIsDecimalExact(t *testing.T) {
	entries := []CompositionEntry{
		{ID: 1, ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("0.3000")},
	}
	prices := map[int64]decimal.Decimal{10: dec("15000.00")}

	res := ResolveEntries(1, entries, LookupFromMap(prices))

	require.True(t, res.Breakdown[0].LineTotal.Equal(dec("4500.00")),
		"got %s", res.Breakdown[0].LineTotal)
	require.True(t, res.UnitPrice.Equal(dec("4500.00")))
}

func TestResolveGroupsByCategory(t *testing.T) {
	entries := []CompositionEntry{
		{ID: 1, ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("2.0000")},
		{ID: 2, ItemID: 11, Category: items.CategoryLabor, Coefficient: dec("0.5000")},
		{ID: 3, ItemID: 12, Category: items.CategoryEquipment, Coefficient: dec("0.1000")},
	}
	prices := map[int64]decimal.Decimal{
		10: dec("10000.00"),
		11: dec("80000.00"),
		12: dec("50000.00"),
	}

	res := ResolveEntries(7, entries, LookupFromMap(prices))

	require.True(t, res.MaterialTotal.Equal(dec("20000")))
	require.True(t, res.LaborTotal.Equal(dec("40000")))
	require.True(t, res.EquipmentTotal.Equal(dec("5000")))
	require.True(t, res.UnitPrice.Equal(dec("65000.00")))
}

func TestResolveMissingPriceDegradesToZero(t *testing.T) {
	entries := []CompositionEntry{
		{ID: 1, ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("1.0000")},
		{ID: 2, ItemID: 99, Category: items.CategoryLabor, Coefficient: dec("3.0000")},
	}
	prices := map[int64]decimal.Decimal{10: dec("2500.00")}

	res := ResolveEntries(1, entries, LookupFromMap(prices))

	require.True(t, res.UnitPrice.Equal(dec("2500.00")))
	require.Equal(t, 1, res.UnpricedCount)
	require.True(t, res.Incomplete())
	require.False(t, res.Breakdown[0].Unpriced)
	require.True(t, res.Breakdown[1].Unpriced)
	require.True(t, res.Breakdown[1].LineTotal.IsZero())
}

func TestResolveIsOrderIndependent(t *testing.T) {
	entries := []CompositionEntry{
		{ID: 1, ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("0.0001")},
		{ID: 2, ItemID: 11, Category: items.CategoryMaterial, Coefficient: dec("123.4567")},
		{ID: 3, ItemID: 12, Category: items.CategoryMaterial, Coefficient: dec("0.3333")},
	}
	prices := map[int64]decimal.Decimal{
		10: dec("99999.99"),
		11: dec("0.01"),
		12: dec("15000.00"),
	}
	reversed := []CompositionEntry{entries[2], entries[1], entries[0]}

	forward := ResolveEntries(1, entries, LookupFromMap(prices))
	backward := ResolveEntries(1, reversed, LookupFromMap(prices))

	require.True(t, forward.UnitPrice.Equal(backward.UnitPrice))
	require.True(t, forward.MaterialTotal.Equal(backward.MaterialTotal))
}

func TestResolverUnknownAnalysis(t *testing.T) {
	r := NewResolver(&memoryLoader{analyses: map[int64]Analysis{}})

	_, err := r.Resolve(context.Background(), 42, LookupFromMap(nil))
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolverLoadsEntries(t *testing.T) {
	loader := &memoryLoader{analyses: map[int64]Analysis{
		5: {ID: 5, Code: "A.1.1", Entries: []CompositionEntry{
			{ID: 1, ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("1.2000")},
		}},
	}}
	r := NewResolver(loader)

	res, err := r.Resolve(context.Background(), 5, LookupFromMap(map[int64]decimal.Decimal{10: dec("1000.00")}))
	require.NoError(t, err)
	require.True(t, res.UnitPrice.Equal(dec("1200.00")))
	require.Equal(t, int64(5), res.AnalysisID)
}
