package adoption

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/disruptrun/internal/series"
	"github.com/sawpanic/disruptrun/internal/tune/opt"
)

type spyMinimizer struct {
	calls  int
	result opt.Result
	err    error
}

func (s *spyMinimizer) Minimize(f opt.Objective, bounds []opt.Bound) (opt.Result, error) {
	s.calls++
	return s.result, s.err
}

func newFitter() *Fitter {
	return NewFitter(DefaultFitConfig(), opt.NewDifferentialEvolution(opt.DefaultOptimizerConfig()))
}

func logisticHistory(p Params, from, to int) series.TimeSeries {
	years := series.YearRange(from, to)
	values := make([]float64, len(years))
	for i, y := range years {
		values[i] = p.Share(float64(y))
	}
	return series.MustNew(years, values).Named("ev_share")
}

func TestFitter_RecoversKnownCurve(t *testing.T) {
	truth := Params{L: 1, K: 0.5, T0: 2025}
	history := logisticHistory(truth, 2015, 2024)

	result := newFitter().Fit(history, nil)

	require.False(t, result.Fallback)
	assert.InDelta(t, truth.K, result.Params.K, 0.01)
	assert.InDelta(t, truth.T0, result.Params.T0, 0.1)
	assert.Equal(t, 1.0, result.Params.L)
	assert.Less(t, result.SSE, 1e-5)
	assert.Equal(t, 10, result.Points)
}

func TestFitter_Deterministic(t *testing.T) {
	history := series.MustNew(series.YearRange(2016, 2023), []float64{0.01, 0.015, 0.02, 0.04, 0.05, 0.09, 0.14, 0.18})

	first := newFitter().Fit(history, nil)
	second := newFitter().Fit(history, nil)

	assert.Equal(t, first.Params, second.Params)
	assert.Equal(t, first.SSE, second.SSE)
}

func TestFitter_FewPointsSkipsOptimizer(t *testing.T) {
	spy := &spyMinimizer{}
	fitter := NewFitter(DefaultFitConfig(), spy)
	history := series.MustNew([]int{2021, 2022}, []float64{0.02, 0.03})

	t.Run("no seed uses configured defaults", func(t *testing.T) {
		result := fitter.Fit(history, nil)
		assert.True(t, result.Fallback)
		assert.Equal(t, FallbackInsufficientData, result.FallbackReason)
		assert.Equal(t, Params{L: 1, K: 0.4, T0: 2021}, result.Params)
	})

	t.Run("seed is returned as is", func(t *testing.T) {
		seed := &Params{K: 0.6, T0: 2030}
		result := fitter.Fit(history, seed)
		assert.True(t, result.Fallback)
		assert.Equal(t, Params{L: 1, K: 0.6, T0: 2030}, result.Params)
	})

	assert.Equal(t, 0, spy.calls)
}

func TestFitter_OptimizerFailureFallsBack(t *testing.T) {
	history := series.MustNew(series.YearRange(2018, 2022), []float64{0.01, 0.02, 0.04, 0.07, 0.1})

	tests := []struct {
		name string
		spy  *spyMinimizer
	}{
		{"optimizer error", &spyMinimizer{err: errors.New("boom")}},
		{"non-finite solution", &spyMinimizer{result: opt.Result{X: []float64{0.3, 2020}, F: 1 / zero()}}},
		{"malformed solution", &spyMinimizer{result: opt.Result{X: []float64{0.3}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewFitter(DefaultFitConfig(), tt.spy).Fit(history, &Params{K: 0.4, T0: 2026})
			assert.Equal(t, 1, tt.spy.calls)
			assert.True(t, result.Fallback)
			assert.Equal(t, FallbackOptimizationFailed, result.FallbackReason)
			assert.Equal(t, Params{L: 1, K: 0.4, T0: 2026}, result.Params)
		})
	}
}

func zero() float64 { return 0 }

func TestFitter_Bounds(t *testing.T) {
	fitter := newFitter()
	history := series.MustNew(series.YearRange(2015, 2023), make([]float64, 9))

	unseeded := fitter.Bounds(history, nil)
	assert.Equal(t, []opt.Bound{{Lo: 0.05, Hi: 1.5}, {Lo: 2010, Hi: 2033}}, unseeded)

	seeded := fitter.Bounds(history, &Params{K: 0.4, T0: 2028})
	assert.InDelta(t, 0.1, seeded[0].Lo, 1e-12)
	assert.InDelta(t, 0.7, seeded[0].Hi, 1e-12)
	assert.Equal(t, opt.Bound{Lo: 2023, Hi: 2033}, seeded[1])

	// k never drops to zero or below
	lowSeed := fitter.Bounds(history, &Params{K: 0.1, T0: 2028})
	assert.Greater(t, lowSeed[0].Lo, 0.0)
}

func TestFitter_SeededFitStaysInWindow(t *testing.T) {
	history := logisticHistory(Params{L: 1, K: 0.9, T0: 2040}, 2015, 2024)
	seed := &Params{K: 0.4, T0: 2028}

	result := newFitter().Fit(history, seed)

	require.False(t, result.Fallback)
	assert.GreaterOrEqual(t, result.Params.K, 0.1-1e-12)
	assert.LessOrEqual(t, result.Params.K, 0.7+1e-12)
	assert.GreaterOrEqual(t, result.Params.T0, 2023.0)
	assert.LessOrEqual(t, result.Params.T0, 2033.0)
}

func TestForecast_ClampsToCeiling(t *testing.T) {
	p := Params{L: 0.8, K: 0.5, T0: 2030}
	shares := Forecast(p, 2020, 2060)

	assert.Equal(t, 2020, shares.FirstYear())
	assert.Equal(t, 2060, shares.LastYear())
	for _, pt := range shares.Points() {
		assert.GreaterOrEqual(t, pt.Value, 0.0)
		assert.LessOrEqual(t, pt.Value, 0.8)
	}
	mid, _ := shares.At(2030)
	assert.InDelta(t, 0.4, mid, 1e-12)
}

func TestShareToDemand_ClampsToMarket(t *testing.T) {
	shares := series.MustNew([]int{2020, 2021, 2022, 2023}, []float64{0.5, 1.2, -0.1, 0.3})
	market := series.MustNew([]int{2020, 2021, 2022}, []float64{100, 200, 300})

	demand := ShareToDemand(shares, market)
	assert.Equal(t, []float64{50, 200, 0, 0}, demand.Values())
}

func TestExtendToTipping(t *testing.T) {
	history := series.MustNew([]int{2020, 2021, 2022}, []float64{0.01, 0.02, 0.04})

	t.Run("extends with latest slope", func(t *testing.T) {
		extended, added := ExtendToTipping(history, 2025, 1)
		assert.Equal(t, 3, added)
		assert.Equal(t, series.YearRange(2020, 2025), extended.Years())
		assert.InDeltaSlice(t, []float64{0.01, 0.02, 0.04, 0.06, 0.08, 0.10}, extended.Values(), 1e-12)
	})

	t.Run("clamped to ceiling", func(t *testing.T) {
		steep := series.MustNew([]int{2020, 2021}, []float64{0.3, 0.6})
		extended, _ := ExtendToTipping(steep, 2024, 1)
		assert.Equal(t, 1.0, extended.ValueOr(2024, 0))
	})

	t.Run("tipping inside history is a no-op", func(t *testing.T) {
		extended, added := ExtendToTipping(history, 2021, 1)
		assert.Equal(t, 0, added)
		assert.Equal(t, history.Points(), extended.Points())
	})
}
