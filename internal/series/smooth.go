package series

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the rolling window used when configuration leaves it unset
const DefaultWindow = 3

// Smooth applies a centered rolling median. Index i uses the values in
// [max(0, i-w/2), min(n, i+w/2+1)). Series shorter than the window, and windows of
// one or less, are returned unchanged.
func Smooth(ts TimeSeries, window int) TimeSeries {
	return rolling(ts, window, Median)
}

// RollingMean applies a centered rolling average with the same window geometry as Smooth
func RollingMean(ts TimeSeries, window int) TimeSeries {
	return rolling(ts, window, func(xs []float64) float64 { return stat.Mean(xs, nil) })
}

func rolling(ts TimeSeries, window int, agg func([]float64) float64) TimeSeries {
	n := ts.Len()
	if window <= 1 || n < window {
		return ts
	}

	half := window / 2
	values := ts.Values()
	out := make([]Point, n)
	for i, p := range ts.points {
		lo := max(0, i-half)
		hi := min(n, i+half+1)
		out[i] = Point{Year: p.Year, Value: agg(values[lo:hi])}
	}
	return TimeSeries{name: ts.name, points: out}
}

// Median returns the median of xs without modifying it; even-sized inputs average the middle pair
func Median(xs []float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, xs)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
