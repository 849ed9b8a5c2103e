// Package money holds the cent-exact helpers shared by the ledger engines.
package money

import "github.com/shopspring/decimal"

var (
	// Cent is the smallest representable amount and the tolerance for
	// amount comparisons.
	Cent = decimal.New(1, -2)
	// PercentTolerance bounds how far a percent total may stray from 100.
	PercentTolerance = decimal.New(1, -2)
	// Hundred is 100 as a decimal.
	Hundred = decimal.NewFromInt(100)
)

// ToCents converts an amount to integer cents, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents back to a 2-place amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Within reports whether |a-b| <= tol.
func Within(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Sum adds amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Format renders an amount as "$12.34", with a leading minus when negative.
func Format(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
