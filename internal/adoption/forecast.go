package adoption

import (
	"github.com/sawpanic/disruptrun/internal/series"
)

// Forecast evaluates the logistic curve for every year in [firstYear, endYear],
// clamping shares to [0, L]
func Forecast(p Params, firstYear, endYear int) series.TimeSeries {
	years := series.YearRange(firstYear, endYear)
	values := make([]float64, len(years))
	for i, y := range years {
		values[i] = series.Clamp(p.Share(float64(y)), 0, p.L)
	}
	return series.MustNew(years, values)
}

// ShareToDemand converts shares into absolute demand over the years of shares.
// Demand is clamped to [0, market] so no component can exceed the total; years
// without a market value yield zero.
func ShareToDemand(shares, market series.TimeSeries) series.TimeSeries {
	return shares.Map(func(year int, share float64) float64 {
		total, ok := market.At(year)
		if !ok || total <= 0 {
			return 0
		}
		return series.Clamp(share*total, 0, total)
	})
}

// ExtendToTipping linearly extends a share history up to tippingYear using the most
// recent observed slope, clamped to [0, ceiling]. It returns the extended series and
// how many synthetic points were appended. The extension only informs fitting and
// must not be reported as history.
func ExtendToTipping(history series.TimeSeries, tippingYear int, ceiling float64) (series.TimeSeries, int) {
	n := history.Len()
	if n < 2 || tippingYear <= history.LastYear() {
		return history, 0
	}

	points := history.Points()
	last, prev := points[n-1], points[n-2]
	slope := (last.Value - prev.Value) / float64(last.Year-prev.Year)

	years := series.YearRange(last.Year+1, tippingYear)
	values := make([]float64, len(years))
	for i, y := range years {
		values[i] = series.Clamp(last.Value+slope*float64(y-last.Year), 0, ceiling)
	}

	return history.Concat(series.MustNew(years, values)), len(years)
}
