package adoption

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/disruptrun/internal/series"
	"github.com/sawpanic/disruptrun/internal/tune/opt"
)

// ErrOptimizationFailed marks an optimizer error or unusable solution. Fit recovers from it
// with default parameters; it surfaces only in logs and FitResult.Err.
var ErrOptimizationFailed = errors.New("logistic optimization failed")

// Fallback reasons recorded on a FitResult
const (
	FallbackInsufficientData   = "insufficient_data"
	FallbackOptimizationFailed = "optimization_failed"
)

// Params are the logistic curve parameters share(t) = L / (1 + exp(-K (t - T0)))
type Params struct {
	L  float64 `json:"l"`  // Ceiling share in [0, 1]
	K  float64 `json:"k"`  // Growth rate, > 0
	T0 float64 `json:"t0"` // Inflection year
}

// Share evaluates the logistic curve at year t
func (p Params) Share(t float64) float64 {
	return p.L / (1 + math.Exp(-p.K*(t-p.T0)))
}

// String implements fmt.Stringer
func (p Params) String() string {
	return fmt.Sprintf("L=%.3f k=%.4f t0=%.2f", p.L, p.K, p.T0)
}

// FitConfig holds logistic fitting configuration
type FitConfig struct {
	Ceiling      float64 `yaml:"ceiling" json:"ceiling"`               // Fixed L (default: 1.0)
	DefaultK     float64 `yaml:"default_k" json:"default_k"`           // Fallback growth rate (default: 0.4)
	KMin         float64 `yaml:"k_min" json:"k_min"`                   // Unseeded lower k bound (default: 0.05)
	KMax         float64 `yaml:"k_max" json:"k_max"`                   // Unseeded upper k bound (default: 1.5)
	T0Lead       float64 `yaml:"t0_lead" json:"t0_lead"`               // Years before the first observation t0 may lie (default: 5)
	T0Lag        float64 `yaml:"t0_lag" json:"t0_lag"`                 // Years after the last observation t0 may lie (default: 10)
	SeedKRadius  float64 `yaml:"seed_k_radius" json:"seed_k_radius"`   // Seeded k window half-width (default: 0.3)
	SeedT0Radius float64 `yaml:"seed_t0_radius" json:"seed_t0_radius"` // Seeded t0 window half-width (default: 5)
	MinPoints    int     `yaml:"min_points" json:"min_points"`         // Points required to run the optimizer (default: 3)
}

// DefaultFitConfig returns the default logistic fitting configuration
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Ceiling:      1.0,
		DefaultK:     0.4,
		KMin:         0.05,
		KMax:         1.5,
		T0Lead:       5,
		T0Lag:        10,
		SeedKRadius:  0.3,
		SeedT0Radius: 5,
		MinPoints:    3,
	}
}

// Validate reports configuration problems
func (c FitConfig) Validate() []string {
	var problems []string
	if c.Ceiling <= 0 || c.Ceiling > 1 {
		problems = append(problems, fmt.Sprintf("logistic ceiling %.3f outside (0, 1]", c.Ceiling))
	}
	if c.KMin <= 0 || c.KMax < c.KMin {
		problems = append(problems, fmt.Sprintf("logistic k bounds [%.3f, %.3f] invalid", c.KMin, c.KMax))
	}
	if c.DefaultK <= 0 {
		problems = append(problems, fmt.Sprintf("default k %.3f must be positive", c.DefaultK))
	}
	if c.T0Lead < 0 || c.T0Lag < 0 || c.SeedKRadius < 0 || c.SeedT0Radius < 0 {
		problems = append(problems, "logistic search radii must be non-negative")
	}
	if c.MinPoints < 1 {
		problems = append(problems, fmt.Sprintf("min points %d below 1", c.MinPoints))
	}
	return problems
}

// FitResult is the outcome of a logistic fit. Fallback is set whenever Params are
// defaults rather than an optimizer solution.
type FitResult struct {
	Params         Params      `json:"params"`
	Fallback       bool        `json:"fallback"`
	FallbackReason string      `json:"fallback_reason,omitempty"`
	SSE            float64     `json:"sse"`
	Points         int         `json:"points"`
	Evaluations    int         `json:"evaluations"`
	Bounds         []opt.Bound `json:"bounds,omitempty"`
	Err            error       `json:"-"` // Wraps ErrOptimizationFailed when the optimizer could not be used
}

// Fitter fits a logistic adoption curve to historical shares
type Fitter struct {
	config    FitConfig
	minimizer opt.Minimizer
}

// NewFitter creates a fitter using minimizer for the (k, t0) search
func NewFitter(config FitConfig, minimizer opt.Minimizer) *Fitter {
	return &Fitter{config: config, minimizer: minimizer}
}

// Config returns the fitter configuration
func (f *Fitter) Config() FitConfig { return f.config }

// Fit minimizes the squared error between history and the logistic curve over (k, t0)
// with L fixed at the configured ceiling. seed, when non-nil, narrows the search window
// around its K and T0. With fewer than MinPoints observations the optimizer is not
// invoked; on optimizer failure the defaults are returned. Both cases set Fallback.
func (f *Fitter) Fit(history series.TimeSeries, seed *Params) FitResult {
	defaults := f.defaults(history, seed)

	if history.Len() < f.config.MinPoints {
		log.Warn().
			Str("series", history.Name()).
			Int("points", history.Len()).
			Int("required", f.config.MinPoints).
			Msg("Too few points for logistic fit, using default parameters")
		return FitResult{
			Params:         defaults,
			Fallback:       true,
			FallbackReason: FallbackInsufficientData,
			SSE:            sse(history, defaults),
			Points:         history.Len(),
		}
	}

	bounds := f.Bounds(history, seed)
	years := history.Years()
	shares := history.Values()
	ceiling := f.config.Ceiling

	objective := func(x []float64) float64 {
		p := Params{L: ceiling, K: x[0], T0: x[1]}
		total := 0.0
		for i, y := range years {
			d := shares[i] - p.Share(float64(y))
			total += d * d
		}
		return total
	}

	result, err := f.minimizer.Minimize(objective, bounds)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrOptimizationFailed, err)
	} else if len(result.X) != 2 || !finite(result.F) || !finite(result.X[0]) || !finite(result.X[1]) {
		err = fmt.Errorf("%w: non-finite or malformed solution", ErrOptimizationFailed)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("series", history.Name()).
			Msg("Logistic optimization failed, using default parameters")
		return FitResult{
			Params:         defaults,
			Fallback:       true,
			FallbackReason: FallbackOptimizationFailed,
			SSE:            sse(history, defaults),
			Points:         history.Len(),
			Evaluations:    result.Evaluations,
			Bounds:         bounds,
			Err:            err,
		}
	}

	params := Params{L: ceiling, K: result.X[0], T0: result.X[1]}
	log.Debug().
		Str("series", history.Name()).
		Str("params", params.String()).
		Float64("sse", result.F).
		Int("evaluations", result.Evaluations).
		Msg("Logistic fit complete")

	return FitResult{
		Params:      params,
		SSE:         result.F,
		Points:      history.Len(),
		Evaluations: result.Evaluations,
		Bounds:      bounds,
	}
}

// Bounds returns the (k, t0) search window for history and an optional seed
func (f *Fitter) Bounds(history series.TimeSeries, seed *Params) []opt.Bound {
	if seed != nil {
		return []opt.Bound{
			{Lo: math.Max(seed.K-f.config.SeedKRadius, minGrowthRate), Hi: seed.K + f.config.SeedKRadius},
			{Lo: seed.T0 - f.config.SeedT0Radius, Hi: seed.T0 + f.config.SeedT0Radius},
		}
	}
	return []opt.Bound{
		{Lo: f.config.KMin, Hi: f.config.KMax},
		{Lo: float64(history.FirstYear()) - f.config.T0Lead, Hi: float64(history.LastYear()) + f.config.T0Lag},
	}
}

// defaults returns the fallback parameters: the seed when given, otherwise
// DefaultK with t0 at the first observed year.
func (f *Fitter) defaults(history series.TimeSeries, seed *Params) Params {
	if seed != nil {
		return Params{L: f.config.Ceiling, K: seed.K, T0: seed.T0}
	}
	return Params{L: f.config.Ceiling, K: f.config.DefaultK, T0: float64(history.FirstYear())}
}

const minGrowthRate = 1e-3

func sse(history series.TimeSeries, p Params) float64 {
	total := 0.0
	for _, pt := range history.Points() {
		d := pt.Value - p.Share(float64(pt.Year))
		total += d * d
	}
	return total
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
