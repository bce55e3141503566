// Package stats provides the small set of descriptive statistics used by the
// estimators and the orchestrator.
package stats

import "math"

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// SD returns the population standard deviation (divisor n). Baseline and
// ceiling distributions use this, matching the convention of the Monte Carlo
// null distributions they are compared against.
func SD(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	mean := Mean(values)

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)))
}

// SampleSD returns the sample standard deviation (divisor n-1), used for the
// pilot variance estimate that feeds power analysis. Returns 0 when fewer
// than two values are given.
func SampleSD(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	mean := Mean(values)

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)-1))
}
