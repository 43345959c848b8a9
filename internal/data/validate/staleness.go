package validate

import (
	"fmt"

	"github.com/sawpanic/disruptrun/internal/series"
)

// StalenessConfig defines how recent historical inputs must be
type StalenessConfig struct {
	MaxAgeYears int `yaml:"max_age_years" json:"max_age_years"` // Allowed gap between the last observation and the current year, 0 disables (default: 3)
}

// DefaultStalenessConfig returns the default staleness configuration
func DefaultStalenessConfig() StalenessConfig {
	return StalenessConfig{MaxAgeYears: 3}
}

// StalenessChecker flags historical series whose latest observation is old
type StalenessChecker struct {
	config StalenessConfig
}

// NewStalenessChecker creates a new staleness checker
func NewStalenessChecker(config StalenessConfig) *StalenessChecker {
	return &StalenessChecker{config: config}
}

// Check returns a warning when the last year of ts trails currentYear by more than
// MaxAgeYears. Empty series are not reported here; missing inputs are a data source error.
func (sc *StalenessChecker) Check(ts series.TimeSeries, currentYear int) *Report {
	report := NewReport()
	if sc.config.MaxAgeYears <= 0 || ts.Empty() {
		return report
	}

	age := currentYear - ts.LastYear()
	if age > sc.config.MaxAgeYears {
		report.Add(Violation{
			Check:    CheckStaleHistory,
			Severity: SeverityWarning,
			Series:   ts.Name(),
			Year:     ts.LastYear(),
			Value:    float64(age),
			Limit:    float64(sc.config.MaxAgeYears),
			Message:  fmt.Sprintf("%s ends in %d, %d years before %d", ts.Name(), ts.LastYear(), age, currentYear),
		})
	}
	return report
}
