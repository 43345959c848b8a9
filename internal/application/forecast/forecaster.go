package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/disruptrun/internal/adoption"
	"github.com/sawpanic/disruptrun/internal/chimera"
	"github.com/sawpanic/disruptrun/internal/config"
	"github.com/sawpanic/disruptrun/internal/data/validate"
	"github.com/sawpanic/disruptrun/internal/datasources"
	"github.com/sawpanic/disruptrun/internal/displacement"
	"github.com/sawpanic/disruptrun/internal/metrics"
	"github.com/sawpanic/disruptrun/internal/series"
	"github.com/sawpanic/disruptrun/internal/tipping"
	"github.com/sawpanic/disruptrun/internal/tune/opt"
)

// ErrMissingInput wraps a required historical series that the data source could not supply
var ErrMissingInput = errors.New("missing required input")

// MinimizerFactory builds the optimizer used for each logistic fit
type MinimizerFactory func(config opt.OptimizerConfig) opt.Minimizer

// DefaultMinimizerFactory returns seeded differential evolution
func DefaultMinimizerFactory(config opt.OptimizerConfig) opt.Minimizer {
	return opt.NewDifferentialEvolution(config)
}

// Forecaster runs the disruption pipeline for one (entity, region) at a time. It holds
// no mutable state and may be shared by concurrent callers.
type Forecaster struct {
	config       *config.ForecastConfig
	source       datasources.HistoricalDataSource
	metrics      *metrics.MetricsRegistry
	newMinimizer MinimizerFactory
	now          func() time.Time
}

// Option customizes a Forecaster
type Option func(*Forecaster)

// WithMetrics records pipeline metrics into m
func WithMetrics(m *metrics.MetricsRegistry) Option {
	return func(f *Forecaster) { f.metrics = m }
}

// WithMinimizer replaces the optimizer used for logistic fits
func WithMinimizer(factory MinimizerFactory) Option {
	return func(f *Forecaster) { f.newMinimizer = factory }
}

// WithClock sets the clock used for GeneratedAt
func WithClock(now func() time.Time) Option {
	return func(f *Forecaster) { f.now = now }
}

// NewForecaster creates a forecaster over source using cfg
func NewForecaster(cfg *config.ForecastConfig, source datasources.HistoricalDataSource, opts ...Option) *Forecaster {
	f := &Forecaster{
		config:       cfg,
		source:       source,
		newMinimizer: DefaultMinimizerFactory,
		now:          time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Config returns the global forecast configuration
func (f *Forecaster) Config() *config.ForecastConfig { return f.config }

// Run forecasts the configured entity in region
func (f *Forecaster) Run(ctx context.Context, entityID, region string) (*Result, error) {
	entity, err := f.config.Entity(entityID)
	if err != nil {
		return nil, err
	}
	return f.Forecast(ctx, entityID, entity, region)
}

// inputs holds the historical series of one forecast
type inputs struct {
	challengerCost   series.TimeSeries
	incumbentCost    series.TimeSeries
	market           series.TimeSeries
	challengerDemand series.TimeSeries
	bridgeDemand     series.TimeSeries
	baselineDemand   series.TimeSeries
	alternatives     map[string]series.TimeSeries
}

// Forecast runs the full pipeline for entity in region. Missing required inputs and
// non-positive costs abort the forecast; fitting problems degrade to documented
// fallbacks recorded on the result.
func (f *Forecaster) Forecast(ctx context.Context, entityID string, entity config.EntityConfig, region string) (result *Result, err error) {
	start := time.Now()
	cfg := f.config.ForRegion(region)
	logger := log.With().Str("entity", entityID).Str("region", region).Logger()

	f.metrics.IncrementActiveForecasts()
	defer func() {
		f.metrics.DecrementActiveForecasts()
		if err != nil {
			f.metrics.RecordForecast("error")
			logger.Warn().Err(err).Msg("Forecast failed")
			return
		}
		f.metrics.RecordForecast("ok")
	}()

	if problems := entity.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("entity %s: %v", entityID, problems)
	}

	timer := f.metrics.StartStepTimer("load")
	in, err := f.load(ctx, entity, region)
	timer.Stop(stepResult(err))
	if err != nil {
		return nil, err
	}

	result = &Result{
		RunID:       uuid.New().String(),
		Entity:      entityID,
		Region:      region,
		GeneratedAt: f.now().UTC(),
	}

	// Cost curves and tipping point
	timer = f.metrics.StartStepTimer("costs")
	result.Costs, err = f.costCurves(cfg, in)
	timer.Stop(stepResult(err))
	if err != nil {
		return nil, err
	}

	result.TippingPoint, err = tipping.DetectSeries(result.Costs.Challenger.Series, result.Costs.Incumbent.Series)
	if err != nil {
		return nil, err
	}
	f.metrics.RecordTipping(result.TippingPoint.Kind.String())

	// Market
	timer = f.metrics.StartStepTimer("market")
	result.Market, err = series.RobustLinearExtrapolation(series.Smooth(in.market, cfg.SmoothingWindow), cfg.EndYear, cfg.Market.MaxCAGR)
	timer.Stop(stepResult(err))
	if err != nil {
		return nil, fmt.Errorf("failed to extrapolate market: %w", err)
	}
	if result.Market.Fallback {
		f.metrics.RecordExtrapolationFallback(ComponentMarket)
	}
	market := in.market.Concat(result.Market.Series).Named(ComponentMarket)

	// Challenger adoption
	timer = f.metrics.StartStepTimer("fit")
	challenger, err := f.adoption(cfg, in, market, result)
	timer.Stop(stepResult(err))
	if err != nil {
		return nil, err
	}

	decomposition := Decomposition{
		Market:            market,
		Challenger:        challenger,
		FirstForecastYear: in.market.LastYear() + 1,
	}

	// Bridge technology
	if entity.Bridge != "" {
		bridge, summary, err := f.bridge(cfg, in, market, challenger, result.TippingPoint, entity.Bridge)
		if err != nil {
			return nil, err
		}
		decomposition.Bridge = bridge
		result.Bridge = summary
	}

	// Residual
	timer = f.metrics.StartStepTimer("residual")
	err = f.residual(cfg, entity, in, &decomposition, result)
	timer.Stop(stepResult(err))
	if err != nil {
		return nil, err
	}
	result.Decomposition = decomposition

	// Validation
	result.Validation = validate.NewConsistencyValidator(cfg.Validation.Consistency).Validate(market, decomposition.Components())
	result.InputChecks = f.checkInputs(cfg, in)
	for _, v := range result.Validation.Violations {
		f.metrics.RecordViolation(string(v.Check), string(v.Severity))
	}
	for _, v := range result.InputChecks.Violations {
		f.metrics.RecordViolation(string(v.Check), string(v.Severity))
	}

	f.summarize(cfg, in, result)
	result.Duration = time.Since(start)

	logger.Info().
		Str("run_id", result.RunID).
		Str("tipping_point", result.TippingPoint.String()).
		Str("params", result.Fit.Params.String()).
		Bool("fit_fallback", result.Fit.Fallback).
		Bool("valid", result.Validation.Passed).
		Int("violations", len(result.Validation.Violations)).
		Dur("duration", result.Duration).
		Msg("Forecast completed")

	return result, nil
}

func (f *Forecaster) load(ctx context.Context, entity config.EntityConfig, region string) (inputs, error) {
	var in inputs
	var err error

	required := []struct {
		kind    datasources.Kind
		product string
		target  *series.TimeSeries
	}{
		{datasources.KindCost, entity.Challenger, &in.challengerCost},
		{datasources.KindCost, entity.Incumbent, &in.incumbentCost},
		{datasources.KindDemand, entity.Market, &in.market},
		{datasources.KindDemand, entity.Challenger, &in.challengerDemand},
	}
	for _, r := range required {
		*r.target, err = f.fetch(ctx, r.kind, r.product, region)
		if err != nil {
			return inputs{}, fmt.Errorf("%w: %s %s: %w", ErrMissingInput, r.product, r.kind, err)
		}
		if r.target.Empty() {
			return inputs{}, fmt.Errorf("%w: %s %s is empty", ErrMissingInput, r.product, r.kind)
		}
	}

	optional := func(product string) (series.TimeSeries, error) {
		if product == "" {
			return series.TimeSeries{}, nil
		}
		ts, err := f.fetch(ctx, datasources.KindDemand, product, region)
		if errors.Is(err, datasources.ErrSeriesNotFound) {
			log.Debug().Str("product", product).Str("region", region).Msg("Optional demand series not found")
			return series.TimeSeries{}, nil
		}
		return ts, err
	}

	if in.bridgeDemand, err = optional(entity.Bridge); err != nil {
		return inputs{}, err
	}
	if in.baselineDemand, err = optional(entity.Baseline); err != nil {
		return inputs{}, err
	}
	in.alternatives = make(map[string]series.TimeSeries)
	for _, alt := range entity.Alternatives {
		ts, err := optional(alt)
		if err != nil {
			return inputs{}, err
		}
		if !ts.Empty() {
			in.alternatives[alt] = ts
		}
	}
	return in, nil
}

func (f *Forecaster) fetch(ctx context.Context, kind datasources.Kind, product, region string) (series.TimeSeries, error) {
	if kind == datasources.KindCost {
		return f.source.CostSeries(ctx, product, region)
	}
	return f.source.DemandSeries(ctx, product, region)
}

func (f *Forecaster) costCurves(cfg *config.ForecastConfig, in inputs) (CostCurves, error) {
	var curves CostCurves
	var err error

	curves.Challenger, err = series.LogCAGRForecast(series.Smooth(in.challengerCost, cfg.SmoothingWindow), cfg.EndYear)
	if err != nil {
		return CostCurves{}, fmt.Errorf("failed to extrapolate challenger cost: %w", err)
	}
	curves.Incumbent, err = series.LogCAGRForecast(series.Smooth(in.incumbentCost, cfg.SmoothingWindow), cfg.EndYear)
	if err != nil {
		return CostCurves{}, fmt.Errorf("failed to extrapolate incumbent cost: %w", err)
	}

	if curves.Challenger.Fallback {
		f.metrics.RecordExtrapolationFallback("challenger_cost")
	}
	if curves.Incumbent.Fallback {
		f.metrics.RecordExtrapolationFallback("incumbent_cost")
	}
	return curves, nil
}

// adoption fits the logistic curve to the challenger's historical market share and
// returns challenger demand over the market years: observed demand for historical
// years and share times market afterwards.
func (f *Forecaster) adoption(cfg *config.ForecastConfig, in inputs, market series.TimeSeries, result *Result) (series.TimeSeries, error) {
	shares, err := shareHistory(in.challengerDemand, in.market)
	if err != nil {
		return series.TimeSeries{}, fmt.Errorf("failed to compute challenger share: %w", err)
	}
	if shares.Empty() {
		return series.TimeSeries{}, fmt.Errorf("%w: challenger demand and market have no common year", ErrMissingInput)
	}

	var seed *adoption.Params
	fitHistory := shares
	if tip := result.TippingPoint; tip.Exists() {
		seed = &adoption.Params{L: cfg.Logistic.Ceiling, K: cfg.Logistic.DefaultK, T0: float64(tip.Year)}
		// synthetic points never count toward MinPoints; too short a history keeps the seed
		if shares.Len() >= cfg.Logistic.MinPoints {
			fitHistory, result.ExtendedPoints = adoption.ExtendToTipping(shares, tip.Year, cfg.Logistic.Ceiling)
		}
	}

	fitter := adoption.NewFitter(cfg.Logistic, f.newMinimizer(cfg.Optimizer))
	result.Fit = fitter.Fit(fitHistory, seed)
	f.metrics.RecordFit(result.Fit.Evaluations, result.Fit.FallbackReason)

	forecastShares := adoption.Forecast(result.Fit.Params, market.FirstYear(), market.LastYear())
	modelled := adoption.ShareToDemand(forecastShares, market)

	return modelled.Map(func(year int, v float64) float64 {
		if observed, ok := in.challengerDemand.At(year); ok && year <= in.market.LastYear() {
			return series.Clamp(observed, 0, market.ValueOr(year, 0))
		}
		return v
	}).Named(ComponentChallenger), nil
}

// bridge forecasts the transitional technology, capped by the headroom the challenger leaves
func (f *Forecaster) bridge(cfg *config.ForecastConfig, in inputs, market, challenger series.TimeSeries, tip tipping.Point, product string) (series.TimeSeries, *BridgeSummary, error) {
	hump := chimera.New(cfg.Bridge)
	summary := &BridgeSummary{Product: product}
	lastHistory := in.market.LastYear()

	var shares series.TimeSeries
	if cfg.Bridge.DetectPeak && !in.bridgeDemand.Empty() {
		history, err := shareHistory(in.bridgeDemand, in.market)
		if err != nil {
			return series.TimeSeries{}, nil, fmt.Errorf("failed to compute bridge share: %w", err)
		}
		forecast, peak, err := hump.FromHistory(history.Named(product), tip, market.LastYear())
		if err != nil {
			return series.TimeSeries{}, nil, err
		}
		shares = forecast
		summary.Detected = true
		summary.Peak = &peak
	} else {
		shares = hump.Forecast(lastHistory+1, market.LastYear(), tip)
	}

	bridge := market.Map(func(year int, total float64) float64 {
		var v float64
		if observed, ok := in.bridgeDemand.At(year); ok && year <= lastHistory {
			v = observed
		} else {
			v = shares.ValueOr(year, 0) * total
		}
		headroom := math.Max(0, total-challenger.ValueOr(year, 0))
		return series.Clamp(v, 0, headroom)
	}).Named(ComponentBridge)

	return bridge, summary, nil
}

// residual assigns what the challenger and bridge leave either to the incumbent or,
// when the entity lists legacy alternatives, to a baseline plus a displacement sequence
func (f *Forecaster) residual(cfg *config.ForecastConfig, entity config.EntityConfig, in inputs, d *Decomposition, result *Result) error {
	taken := d.Challenger.Add(d.Bridge)

	if !entity.UsesDisplacement() {
		d.Incumbent = d.Market.Map(func(year int, total float64) float64 {
			return math.Max(0, total-taken.ValueOr(year, 0))
		}).Named(ComponentIncumbent)
		return nil
	}

	sequence := cfg.Displacement.Sequence
	if err := entity.CheckOrder(sequence.Order); err != nil {
		return err
	}
	if len(sequence.Order) == 0 {
		sequence.Order = entity.Alternatives
	}

	estimate, strategy, err := displacement.DefaultBaselineEstimator().Estimate(displacement.BaselineInput{
		Market:       d.Market,
		Challenger:   taken,
		Baseline:     in.baselineDemand,
		Alternatives: in.alternatives,
		DefaultShare: cfg.Displacement.DefaultBaselineShare,
	})
	if err != nil {
		return fmt.Errorf("failed to estimate baseline: %w", err)
	}
	result.BaselineStrategy = strategy
	d.Baseline = estimate.Map(func(year int, v float64) float64 {
		return math.Min(v, math.Max(0, d.Market.ValueOr(year, 0)-taken.ValueOr(year, 0)))
	}).Named(ComponentBaseline)

	sequencer, err := displacement.NewSequencer(sequence)
	if err != nil {
		return err
	}
	allocation := sequencer.Allocate(d.Market, taken, d.Baseline)
	d.Alternatives = allocation.Alternatives
	d.Order = allocation.Order
	return nil
}

func (f *Forecaster) checkInputs(cfg *config.ForecastConfig, in inputs) *validate.Report {
	report := validate.NewReport()
	anomalies := validate.NewAnomalyChecker(cfg.Validation.Anomaly)
	staleness := validate.NewStalenessChecker(cfg.Validation.Staleness)
	current := currentYear(cfg, in)

	for _, ts := range []series.TimeSeries{in.challengerCost, in.incumbentCost, in.market, in.challengerDemand} {
		report.Merge(anomalies.Check(ts))
		report.Merge(staleness.Check(ts, current))
	}
	return report
}

func (f *Forecaster) summarize(cfg *config.ForecastConfig, in inputs, result *Result) {
	result.ChallengerCostCAGR = historicalCAGR(in.challengerCost)
	result.IncumbentCostCAGR = historicalCAGR(in.incumbentCost)
	result.CurrentYear = currentYear(cfg, in)

	challenger, okC := result.Costs.Challenger.Series.At(result.CurrentYear)
	incumbent, okI := result.Costs.Incumbent.Series.At(result.CurrentYear)
	if okC && okI {
		gap := challenger - incumbent
		result.CurrentCostGap = &gap
	}
}

// shareHistory divides demand by market for the years both are observed. A
// non-positive market or negative demand in a common year is an error.
func shareHistory(demand, market series.TimeSeries) (series.TimeSeries, error) {
	var years []int
	var shares []float64
	for _, p := range demand.Points() {
		total, ok := market.At(p.Year)
		if !ok {
			continue
		}
		if total <= 0 {
			return series.TimeSeries{}, &series.NonPositiveValueError{Series: market.Name(), Year: p.Year, Value: total}
		}
		if p.Value < 0 {
			return series.TimeSeries{}, &series.NonPositiveValueError{Series: demand.Name(), Year: p.Year, Value: p.Value}
		}
		years = append(years, p.Year)
		shares = append(shares, math.Min(p.Value/total, 1))
	}
	if len(years) == 0 {
		return series.TimeSeries{}, nil
	}
	return series.MustNew(years, shares).Named(demand.Name()), nil
}

func historicalCAGR(ts series.TimeSeries) float64 {
	cagr, err := series.CAGR(ts)
	if err != nil {
		log.Debug().Err(err).Str("series", ts.Name()).Msg("Cost CAGR unavailable")
		return 0
	}
	return cagr
}

func currentYear(cfg *config.ForecastConfig, in inputs) int {
	if cfg.CurrentYear > 0 {
		return cfg.CurrentYear
	}
	return in.challengerCost.LastYear()
}

func stepResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
