package boq

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/ahsp"
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

type stubLoader struct {
	analyses map[int64]ahsp.Analysis
}

func (s *stubLoader) AnalysisWithEntries(_ context.Context, id int64) (ahsp.Analysis, error) {
	a, ok := s.analyses[id]
	if !ok {
		return ahsp.Analysis{}, fmt.Errorf("analysis %d: %w", id, shared.ErrNotFound)
	}
	return a, nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestEvaluateCustomLine(t *testing.T) {
	e := NewEvaluator(&stubLoader{})

	line := Line{Kind: KindCustom, Volume: dec("2.5000"), UnitPrice: dec("100000.00")}
	out, err := e.Evaluate(context.Background(), line, ahsp.LookupFromMap(nil))
	require.NoError(t, err)
	require.True(t, out.TotalPrice.Equal(dec("250000.00")), "got %s", out.TotalPrice)
	require.True(t, out.UnitPrice.Equal(dec("100000.00")))
}

func TestEvaluateIsIdempotent(t *testing.T) {
	e := NewEvaluator(&stubLoader{})

	line := Line{Kind: KindCustom, Volume: dec("3.3333"), UnitPrice: dec("12345.67")}
	first, err := e.Evaluate(context.Background(), line, ahsp.LookupFromMap(nil))
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), first, ahsp.LookupFromMap(nil))
	require.NoError(t, err)
	require.True(t, first.TotalPrice.Equal(second.TotalPrice))
	require.True(t, first.UnitPrice.Equal(second.UnitPrice))
}

func TestEvaluateDerivedLineRefreshesUnitPrice(t *testing.T) {
	loader := &stubLoader{analyses: map[int64]ahsp.Analysis{
		7: {ID: 7, Entries: []ahsp.CompositionEntry{
			{ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("0.3000")},
		}},
	}}
	e := NewEvaluator(loader)
	lookup := ahsp.LookupFromMap(map[int64]decimal.Decimal{10: dec("15000.00")})

	line := Line{Kind: KindDerived, AnalysisID: int64Ptr(7), Volume: dec("10.0000"), UnitPrice: dec("1.00")}
	out, err := e.Evaluate(context.Background(), line, lookup)
	require.NoError(t, err)
	require.True(t, out.UnitPrice.Equal(dec("4500.00")), "got %s", out.UnitPrice)
	require.True(t, out.TotalPrice.Equal(dec("45000.00")), "got %s", out.TotalPrice)
	require.False(t, out.Unpriced)
}

func TestEvaluateDerivedCoefficientChangePropagates(t *testing.T) {
	loader := &stubLoader{analyses: map[int64]ahsp.Analysis{
		7: {ID: 7, Entries: []ahsp.CompositionEntry{
			{ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("1.0000")},
		}},
	}}
	e := NewEvaluator(loader)
	lookup := ahsp.LookupFromMap(map[int64]decimal.Decimal{10: dec("1000.00")})
	ctx := context.Background()

	line := Line{Kind: KindDerived, AnalysisID: int64Ptr(7), Volume: dec("2.0000")}
	before, err := e.Evaluate(ctx, line, lookup)
	require.NoError(t, err)
	require.True(t, before.TotalPrice.Equal(dec("2000.00")))

	loader.analyses[7] = ahsp.Analysis{ID: 7, Entries: []ahsp.CompositionEntry{
		{ItemID: 10, Category: items.CategoryMaterial, Coefficient: dec("2.0000")},
	}}
	after, err := e.Evaluate(ctx, before, lookup)
	require.NoError(t, err)
	require.True(t, after.UnitPrice.Equal(dec("2000.00")))
	require.True(t, after.TotalPrice.Equal(dec("4000.00")))
}

func TestEvaluateVolumeChangeKeepsCustomUnitPrice(t *testing.T) {
	e := NewEvaluator(&stubLoader{})
	ctx := context.Background()

	line := Line{Kind: KindCustom, Volume: dec("1.0000"), UnitPrice: dec("5000.00")}
	out, err := e.Evaluate(ctx, line, ahsp.LookupFromMap(nil))
	require.NoError(t, err)

	out.Volume = dec("4.0000")
	out, err = e.Evaluate(ctx, out, ahsp.LookupFromMap(nil))
	require.NoError(t, err)
	require.True(t, out.UnitPrice.Equal(dec("5000.00")))
	require.True(t, out.TotalPrice.Equal(dec("20000.00")))
}

func TestEvaluateDerivedWithMissingPricesFlagsUnpriced(t *testing.T) {
	loader := &stubLoader{analyses: map[int64]ahsp.Analysis{
		7: {ID: 7, Entries: []ahsp.CompositionEntry{
			{ItemID: 99, Category: items.CategoryEquipment, Coefficient: dec("0.5000")},
		}},
	}}
	e := NewEvaluator(loader)

	line := Line{Kind: KindDerived, AnalysisID: int64Ptr(7), Volume: dec("2.0000")}
	out, err := e.Evaluate(context.Background(), line, ahsp.LookupFromMap(nil))
	require.NoError(t, err)
	require.True(t, out.Unpriced)
	require.True(t, out.TotalPrice.IsZero())
}

func TestEvaluateUnknownAnalysisFails(t *testing.T) {
	e := NewEvaluator(&stubLoader{})

	line := Line{Kind: KindDerived, AnalysisID: int64Ptr(42), Volume: dec("1.0000")}
	_, err := e.Evaluate(context.Background(), line, ahsp.LookupFromMap(nil))
	require.ErrorIs(t, err, shared.ErrNotFound)
}
