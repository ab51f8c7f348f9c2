package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseQuantityNormalisesScale(t *testing.T) {
	q, err := ParseQuantity("0.30001")
	require.NoError(t, err)
	require.Equal(t, "0.3", q.String())

	q, err = ParseQuantity("2.5")
	require.NoError(t, err)
	require.True(t, q.Equal(decimal.RequireFromString("2.5")))
}

func TestParseQuantityRejectsNegative(t *testing.T) {
	_, err := ParseQuantity("-1")
	require.Error(t, err)
}

func TestParseAmountRejectsNegative(t *testing.T) {
	_, err := ParseAmount("-0.01")
	require.Error(t, err)
}

func TestCoefficientTimesPriceIsExact(t *testing.T) {
	// 0.3000 * 15000.00 must be exactly 4500.00, not a float approximation.
	coeff := decimal.RequireFromString("0.3000")
	price := decimal.RequireFromString("15000.00")
	require.Equal(t, "4500", coeff.Mul(price).String())
}

func TestPercentKeepsFullPrecision(t *testing.T) {
	base := decimal.RequireFromString("1000000")
	pct := decimal.RequireFromString("10")
	require.True(t, Percent(base, pct).Equal(decimal.NewFromInt(100000)))

	// 11% of 1210000 = 133100, the worked cascade example.
	subtotal := decimal.RequireFromString("1210000")
	tax := Percent(subtotal, decimal.RequireFromString("11"))
	require.True(t, tax.Equal(decimal.NewFromInt(133100)))
}

func TestValidPercent(t *testing.T) {
	require.True(t, ValidPercent(decimal.Zero))
	require.True(t, ValidPercent(decimal.NewFromInt(100)))
	require.False(t, ValidPercent(decimal.NewFromInt(101)))
	require.False(t, ValidPercent(decimal.NewFromInt(-1)))
}

func TestRoundHalfUp(t *testing.T) {
	require.Equal(t, "10.13", Round(decimal.RequireFromString("10.125")).String())
}
