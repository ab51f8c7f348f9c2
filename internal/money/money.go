// Package money centralises the numeric policy for cost estimation:
// volumes and coefficients carry 4 decimal places, money carries 2,
// multiplication runs at full precision and rounding happens only when
// a stored or displayed amount is produced.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// QuantityScale is the stored precision for volumes and coefficients.
	QuantityScale = 4
	// MoneyScale is the stored precision for amounts.
	MoneyScale = 2
)

var oneHundred = decimal.NewFromInt(100)

// Zero is the zero amount.
var Zero = decimal.Zero

// ParseQuantity parses a quantity string and normalises it to 4 decimal places.
// Negative quantities are rejected.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse quantity %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("money: quantity %q is negative", s)
	}
	return d.Round(QuantityScale), nil
}

// ParseAmount parses a money string and normalises it to 2 decimal places.
// Negative amounts are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("money: amount %q is negative", s)
	}
	return d.Round(MoneyScale), nil
}

// Round rounds an amount to the stored money precision (half up).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// RoundQuantity rounds to the stored quantity precision.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityScale)
}

// Percent applies pct (0..100) to base at full precision. The caller
// rounds the result when storing it.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(oneHundred)
}

// ValidPercent reports whether pct lies in [0,100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(oneHundred)
}
