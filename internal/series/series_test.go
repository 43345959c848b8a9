package series

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		years  []int
		values []float64
	}{
		{"length mismatch", []int{2020, 2021}, []float64{1}},
		{"duplicate year", []int{2020, 2020}, []float64{1, 2}},
		{"decreasing years", []int{2021, 2020}, []float64{1, 2}},
		{"nan value", []int{2020}, []float64{math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.years, tt.values)
			assert.ErrorIs(t, err, ErrInvalidSeries)
		})
	}
}

func TestTimeSeries_DerivedSeriesDoNotAlias(t *testing.T) {
	ts := MustNew([]int{2020, 2021, 2022}, []float64{1, 2, 3})
	doubled := ts.Map(func(_ int, v float64) float64 { return v * 2 })

	assert.Equal(t, []float64{1, 2, 3}, ts.Values())
	assert.Equal(t, []float64{2, 4, 6}, doubled.Values())

	values := ts.Values()
	values[0] = 100
	assert.Equal(t, 1.0, ts.ValueOr(2020, 0))
}

func TestTimeSeries_Arithmetic(t *testing.T) {
	market := MustNew([]int{2020, 2021, 2022}, []float64{100, 110, 120})
	part := MustNew([]int{2020, 2021}, []float64{10, 20})

	assert.Equal(t, []float64{90, 90, 120}, market.Sub(part).Values())
	assert.Equal(t, []float64{110, 130, 120}, market.Add(part).Values())
	assert.InDeltaSlice(t, []float64{0.1, 20.0 / 110, 0}, part.Reindex(market.Years(), 0).Ratio(market).Values(), 1e-12)

	year, peak := market.Max()
	assert.Equal(t, 2022, year)
	assert.Equal(t, 120.0, peak)
}

func TestInterpolate_FillsGapsAndHoldsEndpoints(t *testing.T) {
	ts := MustNew([]int{2020, 2023}, []float64{10, 40})
	got := Interpolate(ts, YearRange(2018, 2025))

	assert.Equal(t, YearRange(2018, 2025), got.Years())
	assert.InDeltaSlice(t, []float64{10, 10, 10, 20, 30, 40, 40, 40}, got.Values(), 1e-12)
}

func TestAlign_CommonGrid(t *testing.T) {
	challenger := MustNew([]int{2020, 2022, 2024}, []float64{300, 200, 100})
	incumbent := MustNew([]int{2021, 2022, 2023}, []float64{150, 150, 160})

	pair, err := Align(challenger, incumbent)
	require.NoError(t, err)

	assert.Equal(t, YearRange(2020, 2024), pair.Years())
	assert.InDeltaSlice(t, []float64{300, 250, 200, 150, 100}, pair.Challenger.Values(), 1e-12)
	assert.InDeltaSlice(t, []float64{150, 150, 150, 160, 160}, pair.Incumbent.Values(), 1e-12)
	assert.InDeltaSlice(t, []float64{150, 100, 50, -10, -60}, pair.Diff(), 1e-12)
}

func TestAlign_EmptySeries(t *testing.T) {
	_, err := Align(TimeSeries{}, MustNew([]int{2020}, []float64{1}))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestSmooth(t *testing.T) {
	ts := MustNew(YearRange(2020, 2024), []float64{1, 9, 3, 4, 100})

	t.Run("window one is identity", func(t *testing.T) {
		assert.Equal(t, ts.Values(), Smooth(ts, 1).Values())
	})

	t.Run("centered median", func(t *testing.T) {
		// edges use truncated windows: [1,9] -> 5 and [4,100] -> 52
		assert.InDeltaSlice(t, []float64{5, 3, 4, 4, 52}, Smooth(ts, 3).Values(), 1e-12)
	})

	t.Run("short series unchanged", func(t *testing.T) {
		short := MustNew([]int{2020, 2021}, []float64{1, 50})
		assert.Equal(t, short.Values(), Smooth(short, 3).Values())
	})

	t.Run("rolling mean", func(t *testing.T) {
		assert.InDeltaSlice(t, []float64{5, 13.0 / 3, 16.0 / 3, 107.0 / 3, 52}, RollingMean(ts, 3).Values(), 1e-12)
	})
}

func TestLogCAGRForecast(t *testing.T) {
	// exact 10% annual decline
	ts := MustNew(YearRange(2020, 2023), []float64{1000, 900, 810, 729})

	ext, err := LogCAGRForecast(ts, 2026)
	require.NoError(t, err)

	assert.Equal(t, MethodLogCAGR, ext.Method)
	assert.False(t, ext.Fallback)
	assert.InDelta(t, -0.1, ext.ImpliedCAGR, 1e-9)
	assert.Equal(t, YearRange(2020, 2026), ext.Series.Years())

	// history kept verbatim
	for _, y := range YearRange(2020, 2023) {
		want, _ := ts.At(y)
		got, _ := ext.Series.At(y)
		assert.Equal(t, want, got)
	}
	got, _ := ext.Series.At(2026)
	assert.InDelta(t, 729*0.9*0.9*0.9, got, 1e-6)
}

func TestLogCAGRForecast_NonPositive(t *testing.T) {
	ts := MustNew(YearRange(2020, 2022), []float64{10, 0, 5}).Named("ev_cost")

	_, err := LogCAGRForecast(ts, 2030)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNonPositiveValue))

	var npe *NonPositiveValueError
	require.ErrorAs(t, err, &npe)
	assert.Equal(t, "ev_cost", npe.Series)
	assert.Equal(t, 2021, npe.Year)
}

func TestLogCAGRForecast_SinglePointFallsBackFlat(t *testing.T) {
	ts := MustNew([]int{2020}, []float64{42})

	ext, err := LogCAGRForecast(ts, 2023)
	require.NoError(t, err)
	assert.True(t, ext.Fallback)
	assert.Equal(t, FallbackInsufficientData, ext.FallbackReason)
	assert.Equal(t, []float64{42, 42, 42, 42}, ext.Series.Values())
}

func TestTheilSen_RobustToOutlier(t *testing.T) {
	ts := MustNew(YearRange(2000, 2005), []float64{0, 2, 4, 600, 8, 10})

	slope, intercept := TheilSen(ts)
	assert.InDelta(t, 2.0, slope, 1e-12)
	assert.InDelta(t, -4000.0, intercept, 1e-9)
}

func TestRobustLinearExtrapolation(t *testing.T) {
	t.Run("within cap follows the line", func(t *testing.T) {
		ts := MustNew(YearRange(2020, 2023), []float64{100, 101, 102, 103})
		ext, err := RobustLinearExtrapolation(ts, 2025, 0.05)
		require.NoError(t, err)

		assert.False(t, ext.Capped)
		assert.InDeltaSlice(t, []float64{100, 101, 102, 103, 104, 105}, ext.Series.Values(), 1e-9)
	})

	t.Run("growth capped to exact endpoint cagr", func(t *testing.T) {
		ts := MustNew(YearRange(2020, 2023), []float64{100, 200, 300, 400})
		ext, err := RobustLinearExtrapolation(ts, 2033, 0.05)
		require.NoError(t, err)

		require.True(t, ext.Capped)
		end, _ := ext.Series.At(2033)
		assert.InDelta(t, 400*math.Pow(1.05, 10), end, 1e-6)
		assert.InDelta(t, 0.05, ext.ImpliedCAGR, 1e-9)

		// re-anchored on the last historical point
		assert.InDelta(t, 400.0, ext.Slope*2023+ext.Intercept, 1e-6)
	})

	t.Run("decline capped and floored", func(t *testing.T) {
		ts := MustNew(YearRange(2020, 2023), []float64{400, 300, 200, 100})
		ext, err := RobustLinearExtrapolation(ts, 2030, 0.1)
		require.NoError(t, err)

		require.True(t, ext.Capped)
		end, _ := ext.Series.At(2030)
		assert.InDelta(t, 100*math.Pow(0.9, 7), end, 1e-6)
		assert.GreaterOrEqual(t, ext.Series.Min(), 0.0)
	})

	t.Run("insufficient data", func(t *testing.T) {
		ext, err := RobustLinearExtrapolation(MustNew([]int{2020}, []float64{5}), 2022, 0.05)
		require.NoError(t, err)
		assert.True(t, ext.Fallback)
		assert.Equal(t, []float64{5, 5, 5}, ext.Series.Values())
	})
}

func TestCAGR(t *testing.T) {
	rate, err := CAGR(MustNew([]int{2020, 2022}, []float64{100, 121}))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, rate, 1e-12)

	_, err = CAGR(MustNew([]int{2020}, []float64{100}))
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = CAGR(MustNew([]int{2020, 2021}, []float64{0, 1}))
	assert.ErrorIs(t, err, ErrNonPositiveValue)
}

func TestJSONRoundTripKeepsName(t *testing.T) {
	ts := MustNew([]int{2020, 2021}, []float64{1.5, 2.5}).Named("market")
	data, err := ts.MarshalJSON()
	require.NoError(t, err)

	var decoded TimeSeries
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, "market", decoded.Name())
	assert.Equal(t, ts.Points(), decoded.Points())
}
