package shared

import "github.com/shopspring/decimal"

// BalanceTolerance is the largest debit/credit difference accepted as balanced.
var BalanceTolerance = decimal.RequireFromString("0.01")

// Round2 rounds half away from zero to two decimal places.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// WithinTolerance reports whether a and b differ by at most BalanceTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(BalanceTolerance)
}
