package carbs

import "math"

// AcquisitionFunc scores how promising a candidate point is given the
// surrogate's prediction. Higher is more promising; the engine maximizes
// internally regardless of the configured direction.
type AcquisitionFunc func(mean, variance float64, params AcquisitionParams) float64

// AcquisitionParams carries the knobs shared by the built-in acquisition
// functions.
type AcquisitionParams struct {
	// Beta is the UCB exploration weight.
	Beta float64
	// Xi is the minimum improvement margin for EI and PI.
	Xi float64
	// BestSoFar is the best objective value observed so far, maintained by
	// the engine between candidate rounds.
	BestSoFar float64
}

// UCB is the upper confidence bound: mean plus Beta standard deviations.
func UCB(mean, variance float64, params AcquisitionParams) float64 {
	return mean + params.Beta*math.Sqrt(variance)
}

// ExpectedImprovement weighs both the probability and the magnitude of
// improving on the best observation.
func ExpectedImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	improvement := mean - params.BestSoFar - params.Xi
	if sigma == 0 {
		return math.Max(improvement, 0)
	}
	z := improvement / sigma
	return improvement*normalCDF(z) + sigma*normalPDF(z)
}

// ProbabilityOfImprovement is the chance a candidate beats the best
// observation by at least Xi.
func ProbabilityOfImprovement(mean, variance float64, params AcquisitionParams) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		if mean > params.BestSoFar+params.Xi {
			return 1
		}
		return 0
	}
	return normalCDF((mean - params.BestSoFar - params.Xi) / sigma)
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}
