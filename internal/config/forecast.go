package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/disruptrun/internal/adoption"
	"github.com/sawpanic/disruptrun/internal/chimera"
	"github.com/sawpanic/disruptrun/internal/data/validate"
	"github.com/sawpanic/disruptrun/internal/displacement"
	"github.com/sawpanic/disruptrun/internal/series"
	"github.com/sawpanic/disruptrun/internal/tune/opt"
)

// ErrInvalidConfig is returned by LoadForecastConfig when validation finds problems
var ErrInvalidConfig = errors.New("invalid forecast config")

// ForecastConfig is the single configuration record passed to every forecasting component
type ForecastConfig struct {
	EndYear         int                       `yaml:"end_year"`         // Last forecast year
	CurrentYear     int                       `yaml:"current_year"`     // Year the cost gap is reported for, 0 uses the last historical year
	SmoothingWindow int                       `yaml:"smoothing_window"` // Rolling-median window for cost and demand history
	Market          MarketConfig              `yaml:"market"`
	Logistic        adoption.FitConfig        `yaml:"logistic"`
	Optimizer       opt.OptimizerConfig       `yaml:"optimizer"`
	Bridge          chimera.Config            `yaml:"bridge"`
	Displacement    DisplacementConfig        `yaml:"displacement"`
	Validation      ValidationConfig          `yaml:"validation"`
	Regions         map[string]RegionOverride `yaml:"regions,omitempty"`
	Entities        map[string]EntityConfig   `yaml:"entities,omitempty"`
}

// MarketConfig controls total market extrapolation
type MarketConfig struct {
	MaxCAGR float64 `yaml:"max_cagr"` // Cap on the implied growth of the market forecast (default: 0.05)
}

// DisplacementConfig holds the displacement sequence and the baseline fallback share
type DisplacementConfig struct {
	Sequence             displacement.Sequence `yaml:",inline"`
	DefaultBaselineShare float64               `yaml:"default_baseline_share"` // Fraction of total demand used when no baseline data exists (default: 0)
}

// ValidationConfig groups output and input checks
type ValidationConfig struct {
	Consistency validate.ConsistencyConfig `yaml:",inline"`
	Anomaly     validate.AnomalyConfig     `yaml:"anomaly"`
	Staleness   validate.StalenessConfig   `yaml:"staleness"`
}

// RegionOverride replaces selected settings for one region. Unset fields keep the global value.
type RegionOverride struct {
	DisplacementOrder    []string           `yaml:"displacement_order,omitempty"`
	ReserveFloors        map[string]float64 `yaml:"reserve_floors,omitempty"`
	DefaultBaselineShare *float64           `yaml:"default_baseline_share,omitempty"`
	MarketMaxCAGR        *float64           `yaml:"market_max_cagr,omitempty"`
	BridgePeakShare      *float64           `yaml:"bridge_peak_share,omitempty"`
	EndYear              *int               `yaml:"end_year,omitempty"`
}

// Default returns the documented defaults for every tunable
func Default() *ForecastConfig {
	return &ForecastConfig{
		EndYear:         2050,
		CurrentYear:     0,
		SmoothingWindow: series.DefaultWindow,
		Market:          MarketConfig{MaxCAGR: 0.05},
		Logistic:        adoption.DefaultFitConfig(),
		Optimizer:       opt.DefaultOptimizerConfig(),
		Bridge:          chimera.DefaultConfig(),
		Displacement: DisplacementConfig{
			Sequence:             displacement.Sequence{Floors: map[string]float64{}},
			DefaultBaselineShare: 0,
		},
		Validation: ValidationConfig{
			Consistency: validate.DefaultConsistencyConfig(),
			Anomaly:     validate.DefaultAnomalyConfig(),
			Staleness:   validate.DefaultStalenessConfig(),
		},
		Regions:  map[string]RegionOverride{},
		Entities: map[string]EntityConfig{},
	}
}

// LoadForecastConfig reads a YAML file over the defaults and validates the result
func LoadForecastConfig(path string) (*ForecastConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read forecast config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("failed to parse forecast config YAML: %w", err)
	}

	if problems := config.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, problems)
	}

	return config, nil
}

// SaveForecastConfig writes config as YAML, creating the parent directory
func SaveForecastConfig(config *ForecastConfig, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write forecast config: %w", err)
	}

	return nil
}

// GetForecastConfigPath returns the default path for the forecast configuration
func GetForecastConfigPath() string {
	return filepath.Join("config", "forecast.yaml")
}

// Validate checks the configuration for safety and consistency
func (c *ForecastConfig) Validate() []string {
	var problems []string

	if c.EndYear < 1900 || c.EndYear > 2200 {
		problems = append(problems, fmt.Sprintf("end year %d outside [1900, 2200]", c.EndYear))
	}
	if c.CurrentYear != 0 && c.CurrentYear > c.EndYear {
		problems = append(problems, fmt.Sprintf("current year %d after end year %d", c.CurrentYear, c.EndYear))
	}
	if c.SmoothingWindow < 1 {
		problems = append(problems, fmt.Sprintf("smoothing window %d below 1", c.SmoothingWindow))
	}
	if c.Market.MaxCAGR < 0 {
		problems = append(problems, fmt.Sprintf("market max CAGR %.3f must be non-negative", c.Market.MaxCAGR))
	}

	problems = append(problems, c.Logistic.Validate()...)
	problems = append(problems, c.Optimizer.Validate()...)
	problems = append(problems, c.Bridge.Validate()...)
	problems = append(problems, c.Validation.Consistency.Validate()...)

	if share := c.Displacement.DefaultBaselineShare; share < 0 || share > 1 {
		problems = append(problems, fmt.Sprintf("default baseline share %.3f outside [0, 1]", share))
	}
	if len(c.Displacement.Sequence.Order) > 0 {
		if err := c.Displacement.Sequence.Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	for region := range c.Regions {
		resolved := c.ForRegion(region)
		if len(resolved.Displacement.Sequence.Order) > 0 {
			if err := resolved.Displacement.Sequence.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("region %s: %v", region, err))
			}
		}
		if share := resolved.Displacement.DefaultBaselineShare; share < 0 || share > 1 {
			problems = append(problems, fmt.Sprintf("region %s: default baseline share %.3f outside [0, 1]", region, share))
		}
	}

	for id, entity := range c.Entities {
		for _, p := range entity.Validate() {
			problems = append(problems, fmt.Sprintf("entity %s: %s", id, p))
		}
		if !entity.UsesDisplacement() {
			continue
		}
		if err := entity.CheckOrder(c.Displacement.Sequence.Order); err != nil {
			problems = append(problems, fmt.Sprintf("entity %s: %v", id, err))
		}
		for _, region := range entity.Regions {
			if _, ok := c.Regions[region]; !ok {
				continue
			}
			if err := entity.CheckOrder(c.ForRegion(region).Displacement.Sequence.Order); err != nil {
				problems = append(problems, fmt.Sprintf("entity %s region %s: %v", id, region, err))
			}
		}
	}

	return problems
}

// ForRegion returns a copy of the configuration with region overrides applied
func (c *ForecastConfig) ForRegion(region string) *ForecastConfig {
	resolved := *c
	resolved.Displacement.Sequence.Order = append([]string(nil), c.Displacement.Sequence.Order...)
	resolved.Displacement.Sequence.Floors = make(map[string]float64, len(c.Displacement.Sequence.Floors))
	for k, v := range c.Displacement.Sequence.Floors {
		resolved.Displacement.Sequence.Floors[k] = v
	}

	override, ok := c.Regions[region]
	if !ok {
		return &resolved
	}

	if len(override.DisplacementOrder) > 0 {
		resolved.Displacement.Sequence.Order = append([]string(nil), override.DisplacementOrder...)
	}
	for k, v := range override.ReserveFloors {
		resolved.Displacement.Sequence.Floors[k] = v
	}
	if override.DefaultBaselineShare != nil {
		resolved.Displacement.DefaultBaselineShare = *override.DefaultBaselineShare
	}
	if override.MarketMaxCAGR != nil {
		resolved.Market.MaxCAGR = *override.MarketMaxCAGR
	}
	if override.BridgePeakShare != nil {
		resolved.Bridge.PeakShare = *override.BridgePeakShare
	}
	if override.EndYear != nil {
		resolved.EndYear = *override.EndYear
	}
	return &resolved
}
