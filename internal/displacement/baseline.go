package displacement

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/disruptrun/internal/series"
)

var (
	// ErrStrategyNotApplicable is returned by a strategy that lacks the data it needs
	ErrStrategyNotApplicable = errors.New("baseline strategy not applicable")

	// ErrNoBaselineEstimate is returned when every strategy in the chain declined
	ErrNoBaselineEstimate = errors.New("no baseline estimate available")
)

// BaselineInput carries everything a strategy may draw on. Market and Challenger span
// the full forecast range; Baseline and Alternatives hold observed history only.
type BaselineInput struct {
	Market       series.TimeSeries
	Challenger   series.TimeSeries
	Baseline     series.TimeSeries
	Alternatives map[string]series.TimeSeries
	DefaultShare float64
}

// BaselineStrategy estimates the non-displaceable baseline over the market years
type BaselineStrategy interface {
	Name() string
	Estimate(in BaselineInput) (series.TimeSeries, error)
}

// HistoricalBaseline uses observed baseline data, holding its endpoints flat
type HistoricalBaseline struct{}

// Name implements BaselineStrategy
func (HistoricalBaseline) Name() string { return "historical" }

// Estimate implements BaselineStrategy
func (HistoricalBaseline) Estimate(in BaselineInput) (series.TimeSeries, error) {
	if in.Baseline.Empty() {
		return series.TimeSeries{}, fmt.Errorf("%w: no baseline history", ErrStrategyNotApplicable)
	}
	held := series.Interpolate(in.Baseline, in.Market.Years())
	return clampToMarket(held, in.Market), nil
}

// ResidualBaseline derives the baseline share as market minus challenger minus all
// observed alternatives, holding the last historical share over forecast years
type ResidualBaseline struct{}

// Name implements BaselineStrategy
func (ResidualBaseline) Name() string { return "residual" }

// Estimate implements BaselineStrategy
func (ResidualBaseline) Estimate(in BaselineInput) (series.TimeSeries, error) {
	if len(in.Alternatives) == 0 {
		return series.TimeSeries{}, fmt.Errorf("%w: no alternative history", ErrStrategyNotApplicable)
	}

	var years []int
	var shares []float64
	for _, y := range in.Market.Years() {
		market, _ := in.Market.At(y)
		challenger, ok := in.Challenger.At(y)
		if !ok || market <= 0 {
			continue
		}
		residual := market - challenger
		complete := true
		for _, alt := range in.Alternatives {
			v, ok := alt.At(y)
			if !ok {
				complete = false
				break
			}
			residual -= v
		}
		if !complete {
			continue
		}
		years = append(years, y)
		shares = append(shares, math.Max(0, residual)/market)
	}

	if len(years) == 0 {
		return series.TimeSeries{}, fmt.Errorf("%w: no year with market, challenger and alternatives observed", ErrStrategyNotApplicable)
	}

	share := series.Interpolate(series.MustNew(years, shares), in.Market.Years())
	return clampToMarket(share.Mul(in.Market), in.Market), nil
}

// DefaultShareBaseline applies a fixed regional fraction of total demand
type DefaultShareBaseline struct{}

// Name implements BaselineStrategy
func (DefaultShareBaseline) Name() string { return "default_share" }

// Estimate implements BaselineStrategy
func (DefaultShareBaseline) Estimate(in BaselineInput) (series.TimeSeries, error) {
	if in.DefaultShare < 0 || in.DefaultShare > 1 || math.IsNaN(in.DefaultShare) {
		return series.TimeSeries{}, fmt.Errorf("%w: default share %.3f outside [0, 1]", ErrStrategyNotApplicable, in.DefaultShare)
	}
	return in.Market.Map(func(_ int, v float64) float64 { return math.Max(0, v) * in.DefaultShare }), nil
}

// BaselineEstimator tries strategies in order until one produces an estimate
type BaselineEstimator struct {
	strategies []BaselineStrategy
}

// NewBaselineEstimator creates an estimator over strategies, tried in the given order
func NewBaselineEstimator(strategies ...BaselineStrategy) *BaselineEstimator {
	return &BaselineEstimator{strategies: strategies}
}

// DefaultBaselineEstimator tries real data, then the historical residual, then the regional default
func DefaultBaselineEstimator() *BaselineEstimator {
	return NewBaselineEstimator(HistoricalBaseline{}, ResidualBaseline{}, DefaultShareBaseline{})
}

// Estimate returns the first successful estimate and the name of the strategy that produced it
func (e *BaselineEstimator) Estimate(in BaselineInput) (series.TimeSeries, string, error) {
	var lastErr error
	for _, strategy := range e.strategies {
		estimate, err := strategy.Estimate(in)
		if err == nil {
			return estimate.Named("baseline"), strategy.Name(), nil
		}
		log.Debug().
			Err(err).
			Str("strategy", strategy.Name()).
			Msg("Baseline strategy skipped")
		lastErr = err
	}
	if lastErr == nil {
		return series.TimeSeries{}, "", fmt.Errorf("%w: no strategies configured", ErrNoBaselineEstimate)
	}
	return series.TimeSeries{}, "", fmt.Errorf("%w: %v", ErrNoBaselineEstimate, lastErr)
}

func clampToMarket(ts, market series.TimeSeries) series.TimeSeries {
	return ts.Map(func(y int, v float64) float64 {
		return series.Clamp(v, 0, math.Max(0, market.ValueOr(y, 0)))
	})
}
