package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestEffectiveAtRespectsWindowAndActiveFlag(t *testing.T) {
	at := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	open := ItemPrice{Active: true}
	require.True(t, open.EffectiveAt(at))

	windowed := ItemPrice{Active: true, EffectiveFrom: datePtr(2025, 1, 1), EffectiveTo: datePtr(2025, 12, 31)}
	require.True(t, windowed.EffectiveAt(at))

	expired := ItemPrice{Active: true, EffectiveTo: datePtr(2025, 1, 1)}
	require.False(t, expired.EffectiveAt(at))

	future := ItemPrice{Active: true, EffectiveFrom: datePtr(2026, 1, 1)}
	require.False(t, future.EffectiveAt(at))

	inactive := ItemPrice{Active: false}
	require.False(t, inactive.EffectiveAt(at))
}

func TestPickEffectivePrefersLatestEffectiveFrom(t *testing.T) {
	at := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	prices := []ItemPrice{
		{ID: 1, Active: true, EffectiveFrom: datePtr(2024, 1, 1), Amount: decimal.NewFromInt(12000)},
		{ID: 2, Active: true, EffectiveFrom: datePtr(2025, 3, 1), Amount: decimal.NewFromInt(15000)},
		{ID: 3, Active: true, EffectiveFrom: datePtr(2025, 1, 1), Amount: decimal.NewFromInt(14000)},
	}

	best, ok := PickEffective(prices, at)
	require.True(t, ok)
	require.Equal(t, int64(2), best.ID)
}

func TestPickEffectiveBreaksTiesByHighestID(t *testing.T) {
	at := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	prices := []ItemPrice{
		{ID: 5, Active: true, EffectiveFrom: datePtr(2025, 1, 1)},
		{ID: 9, Active: true, EffectiveFrom: datePtr(2025, 1, 1)},
	}

	best, ok := PickEffective(prices, at)
	require.True(t, ok)
	require.Equal(t, int64(9), best.ID)
}

func TestPickEffectiveNoneApplies(t *testing.T) {
	at := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	_, ok := PickEffective([]ItemPrice{{ID: 1, Active: false}}, at)
	require.False(t, ok)
}
