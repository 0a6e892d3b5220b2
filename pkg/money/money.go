package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places amounts are reported with.
const Places = 2

var (
	hundred = decimal.NewFromInt(100)

	// Cent is the smallest reportable unit (0.01).
	Cent = decimal.New(1, -Places)
)

// Round rounds an amount to two decimal places, half-up.
// Amounts handled here are never negative, so decimal's half-away-from-zero
// rounding is half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns amount × rate / 100 without rounding.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampZero returns d, or zero if d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Parse reads a decimal amount from user input. Non-numeric input, including
// "NaN" and "Inf", is rejected.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
