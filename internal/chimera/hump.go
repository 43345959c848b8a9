package chimera

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/disruptrun/internal/series"
	"github.com/sawpanic/disruptrun/internal/tipping"
)

// Config holds bridge technology hump configuration
type Config struct {
	PeakShare    float64 `yaml:"peak_share" json:"peak_share"`         // Share reached at the tipping year (default: 0.15)
	HalfLife     float64 `yaml:"half_life" json:"half_life"`           // Decay half-life in years (default: 3)
	DetectPeak   bool    `yaml:"detect_peak" json:"detect_peak"`       // Use the historical peak instead of PeakShare
	PeakWindow   int     `yaml:"peak_window" json:"peak_window"`       // Rolling-average window for peak detection (default: 3)
	MinPeakShare float64 `yaml:"min_peak_share" json:"min_peak_share"` // Detected peaks below this forecast as zero (default: 0.01)
}

// DefaultConfig returns the default hump configuration
func DefaultConfig() Config {
	return Config{
		PeakShare:    0.15,
		HalfLife:     3,
		DetectPeak:   false,
		PeakWindow:   3,
		MinPeakShare: 0.01,
	}
}

// Validate reports configuration problems
func (c Config) Validate() []string {
	var problems []string
	if c.PeakShare < 0 || c.PeakShare > 1 {
		problems = append(problems, fmt.Sprintf("bridge peak share %.3f outside [0, 1]", c.PeakShare))
	}
	if c.HalfLife <= 0 {
		problems = append(problems, fmt.Sprintf("bridge half-life %.2f must be positive", c.HalfLife))
	}
	if c.PeakWindow < 1 {
		problems = append(problems, fmt.Sprintf("bridge peak window %d below 1", c.PeakWindow))
	}
	if c.MinPeakShare < 0 {
		problems = append(problems, "bridge min peak share must be non-negative")
	}
	return problems
}

// Peak is a detected historical maximum
type Peak struct {
	Year  int     `json:"year"`
	Share float64 `json:"share"`
}

// Hump models a bridge technology that rises until cost parity and then decays
type Hump struct {
	config Config
}

// New creates a hump model
func New(config Config) *Hump {
	return &Hump{config: config}
}

// Config returns the hump configuration
func (h *Hump) Config() Config { return h.config }

// Share returns the bridge share in year. The share rises linearly from zero at
// firstYear to PeakShare at the tipping year, then halves every HalfLife years.
// Without a tipping point the share is zero.
func (h *Hump) Share(year, firstYear int, tip tipping.Point) float64 {
	if !tip.Exists() {
		return 0
	}
	if year <= tip.Year {
		if tip.Year <= firstYear {
			return h.config.PeakShare
		}
		progress := series.Clamp(float64(year-firstYear)/float64(tip.Year-firstYear), 0, 1)
		return h.config.PeakShare * progress
	}
	return decay(h.config.PeakShare, year-tip.Year, h.config.HalfLife)
}

// Forecast evaluates Share for every year in [firstYear, endYear]
func (h *Hump) Forecast(firstYear, endYear int, tip tipping.Point) series.TimeSeries {
	years := series.YearRange(firstYear, endYear)
	values := make([]float64, len(years))
	for i, y := range years {
		values[i] = h.Share(y, firstYear, tip)
	}
	return series.MustNew(years, values)
}

// DetectPeak smooths history with a centered rolling average and returns its maximum
func DetectPeak(history series.TimeSeries, window int) (Peak, error) {
	if history.Empty() {
		return Peak{}, &series.InsufficientDataError{Operation: "peak detection", Have: 0, Need: 1}
	}
	year, share := series.RollingMean(history, window).Max()
	return Peak{Year: year, Share: share}, nil
}

// FromHistory forecasts the bridge share from observed history through endYear.
// Historical years keep their observed values. Forecast years hold the detected
// peak until the decline start, max(peak year, tipping year), and decay by the
// half-life afterwards. Without a tipping point forecast years are zero, matching
// Share. A peak below MinPeakShare yields zero for every year.
func (h *Hump) FromHistory(history series.TimeSeries, tip tipping.Point, endYear int) (series.TimeSeries, Peak, error) {
	peak, err := DetectPeak(history, h.config.PeakWindow)
	if err != nil {
		return series.TimeSeries{}, Peak{}, fmt.Errorf("failed to detect bridge peak: %w", err)
	}

	first := history.FirstYear()
	if peak.Share < h.config.MinPeakShare {
		log.Debug().
			Str("series", history.Name()).
			Float64("peak_share", peak.Share).
			Float64("min_peak_share", h.config.MinPeakShare).
			Msg("Bridge technology has no significant presence, forecasting zero")
		return series.Constant(first, endYear, 0), peak, nil
	}

	declineStart := peak.Year
	if tip.Exists() && tip.Year > declineStart {
		declineStart = tip.Year
	}

	years := series.YearRange(history.LastYear()+1, endYear)
	values := make([]float64, len(years))
	for i, y := range years {
		switch {
		case !tip.Exists():
			values[i] = 0
		case y <= declineStart:
			values[i] = peak.Share
		default:
			values[i] = decay(peak.Share, y-declineStart, h.config.HalfLife)
		}
	}

	return history.Concat(series.MustNew(years, values)), peak, nil
}

func decay(peak float64, elapsed int, halfLife float64) float64 {
	return peak * math.Pow(2, -float64(elapsed)/halfLife)
}
