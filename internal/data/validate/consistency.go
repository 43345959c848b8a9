package validate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sawpanic/disruptrun/internal/series"
)

// ConsistencyConfig defines the tolerances applied to a demand decomposition
type ConsistencyConfig struct {
	Tolerance       float64 `yaml:"tolerance" json:"tolerance"`               // Allowed excess of components over market (default: 0.005)
	Relative        bool    `yaml:"relative" json:"relative"`                 // Tolerance is a fraction of market rather than absolute (default: true)
	NegativeEpsilon float64 `yaml:"negative_epsilon" json:"negative_epsilon"` // Values below -epsilon are negative (default: 1e-9)
	MaxYoYChange    float64 `yaml:"max_yoy_change" json:"max_yoy_change"`     // Relative year-over-year change flagged as a jump, 0 disables (default: 1.0)
	MaxCAGR         float64 `yaml:"max_cagr" json:"max_cagr"`                 // Implied CAGR bound, 0 disables (default: 0.5)
}

// DefaultConsistencyConfig returns the default consistency tolerances
func DefaultConsistencyConfig() ConsistencyConfig {
	return ConsistencyConfig{
		Tolerance:       0.005,
		Relative:        true,
		NegativeEpsilon: 1e-9,
		MaxYoYChange:    1.0,
		MaxCAGR:         0.5,
	}
}

// Validate reports configuration problems
func (c ConsistencyConfig) Validate() []string {
	var problems []string
	if c.Tolerance < 0 {
		problems = append(problems, fmt.Sprintf("validation tolerance %.4f must be non-negative", c.Tolerance))
	}
	if c.Relative && c.Tolerance > 0.1 {
		problems = append(problems, fmt.Sprintf("relative validation tolerance %.4f above 10%%", c.Tolerance))
	}
	if c.NegativeEpsilon < 0 || c.MaxYoYChange < 0 || c.MaxCAGR < 0 {
		problems = append(problems, "validation thresholds must be non-negative")
	}
	return problems
}

// ConsistencyValidator checks a decomposition without modifying it
type ConsistencyValidator struct {
	config ConsistencyConfig
}

// NewConsistencyValidator creates a validator with the given tolerances
func NewConsistencyValidator(config ConsistencyConfig) *ConsistencyValidator {
	return &ConsistencyValidator{config: config}
}

// Validate runs every check over market and components. Checks are independent:
// one failing never stops the others. Negative values and components summing above
// market are errors; year-over-year jumps and CAGR excursions are warnings.
func (cv *ConsistencyValidator) Validate(market series.TimeSeries, components []series.TimeSeries) *Report {
	report := NewReport()

	all := append([]series.TimeSeries{market}, components...)
	for _, ts := range all {
		cv.checkNegative(report, ts)
	}
	cv.checkSum(report, market, components)
	for _, ts := range all {
		cv.checkYoY(report, ts)
		cv.checkCAGR(report, ts)
	}

	return report
}

func (cv *ConsistencyValidator) checkNegative(report *Report, ts series.TimeSeries) {
	for _, p := range ts.Points() {
		if p.Value < -cv.config.NegativeEpsilon {
			report.Add(Violation{
				Check:    CheckNegativeValue,
				Severity: SeverityError,
				Series:   ts.Name(),
				Year:     p.Year,
				Value:    p.Value,
				Limit:    -cv.config.NegativeEpsilon,
				Message:  fmt.Sprintf("%s is negative (%.6g) in %d", ts.Name(), p.Value, p.Year),
			})
		}
	}
}

func (cv *ConsistencyValidator) checkSum(report *Report, market series.TimeSeries, components []series.TimeSeries) {
	values := make([]float64, len(components))
	for _, p := range market.Points() {
		for i, c := range components {
			values[i] = c.ValueOr(p.Year, 0)
		}
		sum := floats.Sum(values)
		limit := p.Value + cv.tolerance(p.Value)
		if sum > limit {
			report.Add(Violation{
				Check:    CheckSumExceedsMarket,
				Severity: SeverityError,
				Series:   market.Name(),
				Year:     p.Year,
				Value:    sum,
				Limit:    limit,
				Message:  fmt.Sprintf("components sum to %.6g in %d, above market %.6g", sum, p.Year, p.Value),
			})
		}
	}
}

func (cv *ConsistencyValidator) tolerance(market float64) float64 {
	if cv.config.Relative {
		return cv.config.Tolerance * math.Abs(market)
	}
	return cv.config.Tolerance
}

func (cv *ConsistencyValidator) checkYoY(report *Report, ts series.TimeSeries) {
	if cv.config.MaxYoYChange <= 0 {
		return
	}
	points := ts.Points()
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Value, points[i].Value
		if math.Abs(prev) <= cv.config.NegativeEpsilon {
			continue
		}
		change := (cur - prev) / math.Abs(prev)
		if math.Abs(change) > cv.config.MaxYoYChange {
			report.Add(Violation{
				Check:    CheckYoYJump,
				Severity: SeverityWarning,
				Series:   ts.Name(),
				Year:     points[i].Year,
				Value:    change,
				Limit:    cv.config.MaxYoYChange,
				Message:  fmt.Sprintf("%s changes %.1f%% from %d to %d", ts.Name(), change*100, points[i-1].Year, points[i].Year),
			})
		}
	}
}

func (cv *ConsistencyValidator) checkCAGR(report *Report, ts series.TimeSeries) {
	if cv.config.MaxCAGR <= 0 || ts.Len() < 2 {
		return
	}
	points := ts.Points()
	first, last := points[0], points[len(points)-1]
	if first.Value <= 0 || last.Value <= 0 {
		return
	}
	cagr := series.CAGRBetween(first.Value, last.Value, last.Year-first.Year)
	if math.Abs(cagr) > cv.config.MaxCAGR {
		report.Add(Violation{
			Check:    CheckCAGRBound,
			Severity: SeverityWarning,
			Series:   ts.Name(),
			Year:     last.Year,
			Value:    cagr,
			Limit:    cv.config.MaxCAGR,
			Message:  fmt.Sprintf("%s implies %.1f%% CAGR over %d-%d", ts.Name(), cagr*100, first.Year, last.Year),
		})
	}
}
