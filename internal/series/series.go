package series

import (
	"fmt"
	"math"
	"sort"
)

// Point is a single yearly observation
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// TimeSeries is an ordered yearly series with strictly increasing years.
// Values are never mutated after construction; every operation returns a new series.
type TimeSeries struct {
	name   string
	points []Point
}

// New builds a TimeSeries from parallel year/value slices
func New(years []int, values []float64) (TimeSeries, error) {
	if len(years) != len(values) {
		return TimeSeries{}, fmt.Errorf("%w: %d years vs %d values", ErrInvalidSeries, len(years), len(values))
	}

	points := make([]Point, len(years))
	for i := range years {
		if i > 0 && years[i] <= years[i-1] {
			return TimeSeries{}, fmt.Errorf("%w: year %d does not follow %d", ErrInvalidSeries, years[i], years[i-1])
		}
		if math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return TimeSeries{}, fmt.Errorf("%w: non-finite value at year %d", ErrInvalidSeries, years[i])
		}
		points[i] = Point{Year: years[i], Value: values[i]}
	}

	return TimeSeries{points: points}, nil
}

// MustNew is New for literals in tests and fixtures; it panics on invalid input
func MustNew(years []int, values []float64) TimeSeries {
	ts, err := New(years, values)
	if err != nil {
		panic(err)
	}
	return ts
}

// FromPoints builds a TimeSeries from points, sorting them by year
func FromPoints(points []Point) (TimeSeries, error) {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	years := make([]int, len(sorted))
	values := make([]float64, len(sorted))
	for i, p := range sorted {
		years[i] = p.Year
		values[i] = p.Value
	}
	return New(years, values)
}

// Constant returns a series holding value for every year in [from, to]
func Constant(from, to int, value float64) TimeSeries {
	if to < from {
		return TimeSeries{}
	}
	points := make([]Point, 0, to-from+1)
	for y := from; y <= to; y++ {
		points = append(points, Point{Year: y, Value: value})
	}
	return TimeSeries{points: points}
}

// Named returns a copy of the series carrying name, used in errors and reports
func (ts TimeSeries) Named(name string) TimeSeries {
	return TimeSeries{name: name, points: ts.points}
}

// Name returns the series label, empty when unnamed
func (ts TimeSeries) Name() string { return ts.name }

// Len returns the number of points
func (ts TimeSeries) Len() int { return len(ts.points) }

// Empty reports whether the series has no points
func (ts TimeSeries) Empty() bool { return len(ts.points) == 0 }

// Points returns a copy of the underlying points
func (ts TimeSeries) Points() []Point {
	out := make([]Point, len(ts.points))
	copy(out, ts.points)
	return out
}

// Years returns a copy of the years
func (ts TimeSeries) Years() []int {
	out := make([]int, len(ts.points))
	for i, p := range ts.points {
		out[i] = p.Year
	}
	return out
}

// Values returns a copy of the values
func (ts TimeSeries) Values() []float64 {
	out := make([]float64, len(ts.points))
	for i, p := range ts.points {
		out[i] = p.Value
	}
	return out
}

// FirstYear returns the first year, or 0 for an empty series
func (ts TimeSeries) FirstYear() int {
	if len(ts.points) == 0 {
		return 0
	}
	return ts.points[0].Year
}

// LastYear returns the last year, or 0 for an empty series
func (ts TimeSeries) LastYear() int {
	if len(ts.points) == 0 {
		return 0
	}
	return ts.points[len(ts.points)-1].Year
}

// Last returns the final point
func (ts TimeSeries) Last() (Point, bool) {
	if len(ts.points) == 0 {
		return Point{}, false
	}
	return ts.points[len(ts.points)-1], true
}

// At returns the value recorded for year
func (ts TimeSeries) At(year int) (float64, bool) {
	i := sort.Search(len(ts.points), func(i int) bool { return ts.points[i].Year >= year })
	if i < len(ts.points) && ts.points[i].Year == year {
		return ts.points[i].Value, true
	}
	return 0, false
}

// ValueOr returns the value for year or def when the year is absent
func (ts TimeSeries) ValueOr(year int, def float64) float64 {
	if v, ok := ts.At(year); ok {
		return v
	}
	return def
}

// Slice returns the points with from <= year <= to
func (ts TimeSeries) Slice(from, to int) TimeSeries {
	out := make([]Point, 0, len(ts.points))
	for _, p := range ts.points {
		if p.Year >= from && p.Year <= to {
			out = append(out, p)
		}
	}
	return TimeSeries{name: ts.name, points: out}
}

// Map applies fn to every value and returns the new series
func (ts TimeSeries) Map(fn func(year int, value float64) float64) TimeSeries {
	out := make([]Point, len(ts.points))
	for i, p := range ts.points {
		out[i] = Point{Year: p.Year, Value: fn(p.Year, p.Value)}
	}
	return TimeSeries{name: ts.name, points: out}
}

// Clamp bounds every value to [lo, hi]
func (ts TimeSeries) Clamp(lo, hi float64) TimeSeries {
	return ts.Map(func(_ int, v float64) float64 { return Clamp(v, lo, hi) })
}

// FloorAt raises every value below floor to floor
func (ts TimeSeries) FloorAt(floor float64) TimeSeries {
	return ts.Map(func(_ int, v float64) float64 { return math.Max(v, floor) })
}

// Concat appends the points of next whose years follow the last year of ts
func (ts TimeSeries) Concat(next TimeSeries) TimeSeries {
	out := make([]Point, len(ts.points), len(ts.points)+len(next.points))
	copy(out, ts.points)
	last := ts.LastYear()
	for _, p := range next.points {
		if len(ts.points) == 0 || p.Year > last {
			out = append(out, p)
		}
	}
	return TimeSeries{name: ts.name, points: out}
}

// Reindex returns a series on the given years using lookup; absent years take fill
func (ts TimeSeries) Reindex(years []int, fill float64) TimeSeries {
	out := make([]Point, len(years))
	for i, y := range years {
		out[i] = Point{Year: y, Value: ts.ValueOr(y, fill)}
	}
	return TimeSeries{name: ts.name, points: out}
}

// Sub returns ts - other over the years of ts; years missing in other count as zero
func (ts TimeSeries) Sub(other TimeSeries) TimeSeries {
	return ts.Map(func(y int, v float64) float64 { return v - other.ValueOr(y, 0) })
}

// Add returns ts + other over the years of ts; years missing in other count as zero
func (ts TimeSeries) Add(other TimeSeries) TimeSeries {
	return ts.Map(func(y int, v float64) float64 { return v + other.ValueOr(y, 0) })
}

// Mul returns ts * other over the years of ts; years missing in other yield zero
func (ts TimeSeries) Mul(other TimeSeries) TimeSeries {
	return ts.Map(func(y int, v float64) float64 { return v * other.ValueOr(y, 0) })
}

// Ratio returns ts / other over the years of ts; zero or missing denominators yield zero
func (ts TimeSeries) Ratio(other TimeSeries) TimeSeries {
	return ts.Map(func(y int, v float64) float64 {
		d, ok := other.At(y)
		if !ok || d == 0 {
			return 0
		}
		return v / d
	})
}

// Min returns the smallest value in the series
func (ts TimeSeries) Min() float64 {
	m := math.Inf(1)
	for _, p := range ts.points {
		m = math.Min(m, p.Value)
	}
	return m
}

// Max returns the largest value and the year it occurs in (earliest on ties)
func (ts TimeSeries) Max() (int, float64) {
	year, m := 0, math.Inf(-1)
	for _, p := range ts.points {
		if p.Value > m {
			year, m = p.Year, p.Value
		}
	}
	return year, m
}

// YearRange returns every integer year in [from, to]
func YearRange(from, to int) []int {
	if to < from {
		return nil
	}
	years := make([]int, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

// Clamp restricts a value to be within [lo, hi]
func Clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
