// Package mathx holds small numeric helpers shared by the analytics packages.
package mathx

import "math"

// Round rounds x to the given number of decimal places, resolving exact
// halves to the even neighbour so presented figures do not drift upward.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.RoundToEven(x*p) / p
}

// SafeRatio returns num/den, or 0 when den is not positive.
func SafeRatio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// LiftPct is the percentage deviation of actual from expected, defined as
// 0 when nothing was expected.
func LiftPct(actual, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	return (actual/expected - 1) * 100
}
