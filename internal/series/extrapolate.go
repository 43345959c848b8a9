package series

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Method names the extrapolation technique that produced a forecast
type Method string

const (
	MethodLogCAGR  Method = "log_cagr"
	MethodTheilSen Method = "theil_sen"
	MethodFlat     Method = "flat"
)

// FallbackInsufficientData marks a flat forecast produced because too few points were available
const FallbackInsufficientData = "insufficient_data"

// Extrapolation is a forecast series together with the fit that produced it
type Extrapolation struct {
	Series         TimeSeries `json:"series"`
	Method         Method     `json:"method"`
	Slope          float64    `json:"slope"`
	Intercept      float64    `json:"intercept"`
	ImpliedCAGR    float64    `json:"implied_cagr"` // Growth rate of the forecast segment
	Capped         bool       `json:"capped"`       // CAGR cap engaged (Theil-Sen only)
	Fallback       bool       `json:"fallback"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
}

// LogCAGRForecast fits log(value) = a + b*year by ordinary least squares and extends the
// series through endYear with exp(a + b*year). Historical points are kept verbatim.
// Any value <= 0 makes the log transform undefined and returns a *NonPositiveValueError.
func LogCAGRForecast(ts TimeSeries, endYear int) (Extrapolation, error) {
	for _, p := range ts.points {
		if p.Value <= 0 {
			return Extrapolation{}, &NonPositiveValueError{Series: ts.name, Year: p.Year, Value: p.Value}
		}
	}
	if ts.Len() < 2 {
		return flatForecast(ts, endYear), nil
	}

	xs := make([]float64, ts.Len())
	ys := make([]float64, ts.Len())
	for i, p := range ts.points {
		xs[i] = float64(p.Year)
		ys[i] = math.Log(p.Value)
	}
	a, b := stat.LinearRegression(xs, ys, nil, false)

	forecast := ts.Concat(generate(ts.LastYear()+1, endYear, func(y int) float64 {
		return math.Exp(a + b*float64(y))
	}))

	return Extrapolation{
		Series:      forecast,
		Method:      MethodLogCAGR,
		Slope:       b,
		Intercept:   a,
		ImpliedCAGR: math.Exp(b) - 1,
	}, nil
}

// RobustLinearExtrapolation extends ts through endYear along a Theil-Sen line.
// When the line implies a compound growth rate beyond ±maxCAGR between the last
// historical point and endYear, the slope is rescaled so the endpoint CAGR equals the
// cap exactly and the line is re-anchored on the last historical point. Forecast values
// are floored at zero. A maxCAGR <= 0 disables the cap.
func RobustLinearExtrapolation(ts TimeSeries, endYear int, maxCAGR float64) (Extrapolation, error) {
	if ts.Len() < 2 {
		return flatForecast(ts, endYear), nil
	}

	slope, intercept := TheilSen(ts)
	last, _ := ts.Last()
	result := Extrapolation{Method: MethodTheilSen}

	horizon := endYear - last.Year
	if horizon > 0 && last.Value > 0 && maxCAGR > 0 {
		projected := slope*float64(endYear) + intercept
		implied := -1.0
		if projected > 0 {
			implied = math.Pow(projected/last.Value, 1/float64(horizon)) - 1
		}

		target := math.NaN()
		switch {
		case implied > maxCAGR:
			target = last.Value * math.Pow(1+maxCAGR, float64(horizon))
		case implied < -maxCAGR:
			target = last.Value * math.Pow(1-maxCAGR, float64(horizon))
		}
		if !math.IsNaN(target) {
			slope = (target - last.Value) / float64(horizon)
			intercept = last.Value - slope*float64(last.Year)
			result.Capped = true
		}
	}

	result.Slope = slope
	result.Intercept = intercept
	result.Series = ts.Concat(generate(last.Year+1, endYear, func(y int) float64 {
		return math.Max(0, slope*float64(y)+intercept)
	}))

	if end, ok := result.Series.Last(); ok && horizon > 0 && last.Value > 0 && end.Value > 0 {
		result.ImpliedCAGR = math.Pow(end.Value/last.Value, 1/float64(horizon)) - 1
	}
	return result, nil
}

// TheilSen returns the median pairwise slope and the median of y - slope*x
func TheilSen(ts TimeSeries) (slope, intercept float64) {
	n := ts.Len()
	if n < 2 {
		if n == 1 {
			return 0, ts.points[0].Value
		}
		return 0, 0
	}

	slopes := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := float64(ts.points[j].Year - ts.points[i].Year)
			slopes = append(slopes, (ts.points[j].Value-ts.points[i].Value)/dx)
		}
	}
	slope = Median(slopes)

	residuals := make([]float64, n)
	for i, p := range ts.points {
		residuals[i] = p.Value - slope*float64(p.Year)
	}
	return slope, Median(residuals)
}

// CAGR returns the compound annual growth rate between the first and last points
func CAGR(ts TimeSeries) (float64, error) {
	if ts.Len() < 2 {
		return 0, &InsufficientDataError{Operation: "cagr", Have: ts.Len(), Need: 2}
	}
	first := ts.points[0]
	last := ts.points[ts.Len()-1]
	if first.Value <= 0 {
		return 0, &NonPositiveValueError{Series: ts.name, Year: first.Year, Value: first.Value}
	}
	if last.Value <= 0 {
		return 0, &NonPositiveValueError{Series: ts.name, Year: last.Year, Value: last.Value}
	}
	return CAGRBetween(first.Value, last.Value, last.Year-first.Year), nil
}

// CAGRBetween returns (end/start)^(1/years) - 1 for positive endpoints
func CAGRBetween(start, end float64, years int) float64 {
	if years <= 0 || start <= 0 || end <= 0 {
		return 0
	}
	return math.Pow(end/start, 1/float64(years)) - 1
}

func flatForecast(ts TimeSeries, endYear int) Extrapolation {
	result := Extrapolation{
		Method:         MethodFlat,
		Fallback:       true,
		FallbackReason: FallbackInsufficientData,
		Series:         ts,
	}
	if last, ok := ts.Last(); ok {
		result.Intercept = last.Value
		result.Series = ts.Concat(generate(last.Year+1, endYear, func(int) float64 { return last.Value }))
	}
	return result
}

func generate(from, to int, fn func(year int) float64) TimeSeries {
	if to < from {
		return TimeSeries{}
	}
	points := make([]Point, 0, to-from+1)
	for y := from; y <= to; y++ {
		points = append(points, Point{Year: y, Value: fn(y)})
	}
	return TimeSeries{points: points}
}
