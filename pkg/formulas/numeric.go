// Package formulas holds the small numeric helpers shared by the outcome engine:
// rounding, clamping, safe ratios and basket statistics.
package formulas

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half away from zero.
// The decimal representation of v is used, so 2.675 rounds to 2.68.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundMoney rounds a monetary amount to 2 decimals (round-half-up).
func RoundMoney(v float64) float64 {
	return Round(v, 2)
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SafeDiv returns a/b, or fallback when b is zero or the result is not finite.
func SafeDiv(a, b, fallback float64) float64 {
	if b == 0 {
		return fallback
	}
	r := a / b
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fallback
	}
	return r
}

// Performance returns current/initial - 1, or 0 when initial is not positive.
func Performance(current, initial float64) float64 {
	if initial <= 0 {
		return 0
	}
	return current/initial - 1
}

// PctToRatio converts a percentage (70) into a ratio (0.7)
func PctToRatio(pct float64) float64 {
	return pct / 100
}

// RatioToPct converts a ratio (0.7) into a percentage (70)
func RatioToPct(ratio float64) float64 {
	return ratio * 100
}

// AlmostEqual reports whether a and b differ by at most tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
