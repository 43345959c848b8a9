package forecast

import (
	"time"

	"github.com/sawpanic/disruptrun/internal/adoption"
	"github.com/sawpanic/disruptrun/internal/chimera"
	"github.com/sawpanic/disruptrun/internal/data/validate"
	"github.com/sawpanic/disruptrun/internal/series"
	"github.com/sawpanic/disruptrun/internal/tipping"
)

// Component names used in decompositions and exports
const (
	ComponentMarket     = "market"
	ComponentChallenger = "challenger"
	ComponentBridge     = "bridge"
	ComponentIncumbent  = "incumbent"
	ComponentBaseline   = "baseline"
)

// Decomposition splits total market demand into named components over one shared
// year range. Incumbent is set when the residual stays with a single incumbent;
// Baseline and Alternatives are set when it is sequenced across legacy alternatives.
type Decomposition struct {
	Market            series.TimeSeries            `json:"market"`
	Challenger        series.TimeSeries            `json:"challenger"`
	Bridge            series.TimeSeries            `json:"bridge"`
	Incumbent         series.TimeSeries            `json:"incumbent"`
	Baseline          series.TimeSeries            `json:"baseline"`
	Alternatives      map[string]series.TimeSeries `json:"alternatives,omitempty"`
	Order             []string                     `json:"order,omitempty"`
	FirstForecastYear int                          `json:"first_forecast_year"`
}

// Years returns the shared year range
func (d Decomposition) Years() []int { return d.Market.Years() }

// Components returns every non-market component in a stable order
func (d Decomposition) Components() []series.TimeSeries {
	components := []series.TimeSeries{d.Challenger}
	if !d.Bridge.Empty() {
		components = append(components, d.Bridge)
	}
	if !d.Incumbent.Empty() {
		components = append(components, d.Incumbent)
	}
	if !d.Baseline.Empty() {
		components = append(components, d.Baseline)
	}
	for _, alt := range d.Order {
		if ts, ok := d.Alternatives[alt]; ok {
			components = append(components, ts)
		}
	}
	return components
}

// Columns returns the market followed by every component, paired with its column name
func (d Decomposition) Columns() ([]string, []series.TimeSeries) {
	names := []string{ComponentMarket, ComponentChallenger}
	columns := []series.TimeSeries{d.Market, d.Challenger}
	if !d.Bridge.Empty() {
		names = append(names, ComponentBridge)
		columns = append(columns, d.Bridge)
	}
	if !d.Incumbent.Empty() {
		names = append(names, ComponentIncumbent)
		columns = append(columns, d.Incumbent)
	}
	if !d.Baseline.Empty() {
		names = append(names, ComponentBaseline)
		columns = append(columns, d.Baseline)
	}
	for _, alt := range d.Order {
		if ts, ok := d.Alternatives[alt]; ok {
			names = append(names, alt)
			columns = append(columns, ts)
		}
	}
	return names, columns
}

// CostCurves holds the extrapolated cost series of both sides of the transition
type CostCurves struct {
	Challenger series.Extrapolation `json:"challenger"`
	Incumbent  series.Extrapolation `json:"incumbent"`
}

// BridgeSummary describes how the bridge technology was forecast
type BridgeSummary struct {
	Product  string        `json:"product"`
	Detected bool          `json:"detected"`
	Peak     *chimera.Peak `json:"peak,omitempty"`
}

// Result is the outcome of one (entity, region) forecast
type Result struct {
	RunID       string    `json:"run_id"`
	Entity      string    `json:"entity"`
	Region      string    `json:"region"`
	GeneratedAt time.Time `json:"generated_at"`

	Decomposition Decomposition `json:"decomposition"`
	TippingPoint  tipping.Point `json:"tipping_point"`

	ChallengerCostCAGR float64  `json:"challenger_cost_cagr"`
	IncumbentCostCAGR  float64  `json:"incumbent_cost_cagr"`
	CurrentYear        int      `json:"current_year"`
	CurrentCostGap     *float64 `json:"current_cost_gap"` // challenger minus incumbent cost, nil when unavailable

	Costs            CostCurves           `json:"costs"`
	Market           series.Extrapolation `json:"market_extrapolation"`
	Fit              adoption.FitResult   `json:"fit"`
	ExtendedPoints   int                  `json:"extended_points"`
	Bridge           *BridgeSummary       `json:"bridge,omitempty"`
	BaselineStrategy string               `json:"baseline_strategy,omitempty"`
	Validation       *validate.Report     `json:"validation"`
	InputChecks      *validate.Report     `json:"input_checks"`
	Duration         time.Duration        `json:"duration"`
}
