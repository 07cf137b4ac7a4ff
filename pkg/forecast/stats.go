package forecast

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quantile returns the p-quantile of an ascending sample, interpolating
// linearly between the two closest ranks at position (n-1)*p.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}

	pos := float64(n-1) * p
	lo := math.Floor(pos)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (pos-lo)*(sorted[i+1]-sorted[i])
}

// iqrBounds returns the inclusive fence [Q1 - k*IQR, Q3 + k*IQR] of values.
func iqrBounds(values []float64, k float64) (lower, upper float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// filterOutliers drops intervals whose rate lies outside the IQR fence.
// Samples smaller than minSamples are returned untouched.
func filterOutliers(intervals []Interval, minSamples int, k float64) []Interval {
	if len(intervals) < minSamples {
		return intervals
	}

	rates := make([]float64, len(intervals))
	for i, iv := range intervals {
		rates[i] = iv.Rate()
	}
	lower, upper := iqrBounds(rates, k)

	kept := make([]Interval, 0, len(intervals))
	for i, iv := range intervals {
		if rates[i] >= lower && rates[i] <= upper {
			kept = append(kept, iv)
		}
	}
	return kept
}

// consolidateRate reduces surviving intervals to one hourly consumption rate.
func consolidateRate(intervals []Interval) (float64, Method) {
	if len(intervals) == 1 {
		return intervals[0].Rate(), MethodSingle
	}

	deltas := make([]float64, len(intervals))
	consumed := make([]float64, len(intervals))
	rates := make([]float64, len(intervals))
	uniform := true
	for i, iv := range intervals {
		deltas[i] = iv.RuntimeDelta
		consumed[i] = iv.FuelConsumed
		rates[i] = iv.Rate()
		if iv.RuntimeDelta != intervals[0].RuntimeDelta {
			uniform = false
		}
	}

	if uniform {
		return stat.Mean(rates, nil), MethodMean
	}

	_, slope := stat.LinearRegression(deltas, consumed, nil, false)
	return slope, MethodRegression
}
