package confidence

import "math"

// degenerateProbability stands in for a PMF term that cannot be computed
// in floating point.
const degenerateProbability = 1e-10

// PoissonTest returns the two-sided p-value for H0: observed ~ Poisson(expected).
// A non-positive expected rate carries no evidence against the null and
// yields 1.0.
func PoissonTest(observed int, expected float64) float64 {
	if expected <= 0 {
		return 1.0
	}
	if float64(observed) >= expected {
		upper := 1 - poissonCDF(observed-1, expected)
		return 2 * math.Min(upper, 0.5)
	}
	lower := poissonCDF(observed, expected)
	return 2 * math.Min(lower, 0.5)
}

// poissonPMF is P(X = k) for X ~ Poisson(lambda), evaluated in log space.
func poissonPMF(k int, lambda float64) float64 {
	if k < 0 {
		return 0
	}
	lgamma, _ := math.Lgamma(float64(k) + 1)
	p := math.Exp(float64(k)*math.Log(lambda) - lambda - lgamma)
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return degenerateProbability
	}
	return p
}

// poissonCDF is P(X <= k), capped at 1.
func poissonCDF(k int, lambda float64) float64 {
	total := 0.0
	for i := 0; i <= k; i++ {
		total += poissonPMF(i, lambda)
	}
	return math.Min(total, 1.0)
}
