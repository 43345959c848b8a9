package validate

import (
	"fmt"
	"math"

	"github.com/sawpanic/disruptrun/internal/series"
)

// AnomalyConfig defines outlier detection over historical input series
type AnomalyConfig struct {
	MADThreshold  float64 `yaml:"mad_threshold" json:"mad_threshold"`     // Robust z-score above which a point is an outlier (default: 3.5)
	WindowSize    int     `yaml:"window_size" json:"window_size"`         // Centered window the median and MAD are taken over (default: 5)
	MinDataPoints int     `yaml:"min_data_points" json:"min_data_points"` // Series shorter than this are not checked (default: 5)
}

// DefaultAnomalyConfig returns the default outlier detection configuration
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		MADThreshold:  3.5,
		WindowSize:    5,
		MinDataPoints: 5,
	}
}

// madScale converts a MAD into a standard deviation estimate for normal data
const madScale = 1.4826

// AnomalyChecker flags historical points that sit far from their neighbours
type AnomalyChecker struct {
	config AnomalyConfig
}

// NewAnomalyChecker creates a new anomaly checker, filling unset fields with defaults
func NewAnomalyChecker(config AnomalyConfig) *AnomalyChecker {
	defaults := DefaultAnomalyConfig()
	if config.MADThreshold <= 0 {
		config.MADThreshold = defaults.MADThreshold
	}
	if config.WindowSize < 3 {
		config.WindowSize = defaults.WindowSize
	}
	if config.MinDataPoints <= 0 {
		config.MinDataPoints = defaults.MinDataPoints
	}
	return &AnomalyChecker{config: config}
}

// Check returns a report with one warning per outlying point. Outliers are flagged,
// never removed; smoothing downstream already damps them.
func (ac *AnomalyChecker) Check(ts series.TimeSeries) *Report {
	report := NewReport()
	if ts.Len() < ac.config.MinDataPoints {
		return report
	}

	values := ts.Values()
	half := ac.config.WindowSize / 2
	for i, p := range ts.Points() {
		lo := max(0, i-half)
		hi := min(len(values), i+half+1)
		score := madScore(values[lo:hi], p.Value)
		if math.Abs(score) > ac.config.MADThreshold {
			report.Add(Violation{
				Check:    CheckOutlier,
				Severity: SeverityWarning,
				Series:   ts.Name(),
				Year:     p.Year,
				Value:    p.Value,
				Limit:    ac.config.MADThreshold,
				Message:  fmt.Sprintf("%s value %.6g in %d has robust z-score %.2f", ts.Name(), p.Value, p.Year, score),
			})
		}
	}
	return report
}

// madScore returns the MAD-based z-score of value against window, zero when the
// window has no spread
func madScore(window []float64, value float64) float64 {
	median := series.Median(window)
	deviations := make([]float64, len(window))
	for i, v := range window {
		deviations[i] = math.Abs(v - median)
	}
	mad := series.Median(deviations) * madScale
	if mad == 0 {
		return 0
	}
	return (value - median) / mad
}
