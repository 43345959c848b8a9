package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/disruptrun/internal/displacement"
)

const sampleYAML = `
end_year: 2045
current_year: 2024
smoothing_window: 5
market:
  max_cagr: 0.03
logistic:
  ceiling: 0.95
bridge:
  peak_share: 0.1
  half_life: 4
displacement:
  order: [coal, gas]
  reserve_floors:
    coal: 0.05
  default_baseline_share: 0.1
validation:
  tolerance: 0.01
  relative: true
  max_yoy_change: 0.8
regions:
  europe:
    displacement_order: [gas, coal]
    reserve_floors:
      gas: 0.08
    market_max_cagr: 0.02
entities:
  power:
    challenger: solar
    incumbent: coal
    market: electricity
    alternatives: [coal, gas]
    baseline: nuclear
    regions: [china, europe]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	config := Default()
	assert.Empty(t, config.Validate())
	assert.Equal(t, 3, config.SmoothingWindow)
	assert.Equal(t, 1.0, config.Logistic.Ceiling)
	assert.Equal(t, 0.4, config.Logistic.DefaultK)
	assert.Equal(t, uint64(42), config.Optimizer.Seed)
}

func TestLoadForecastConfig(t *testing.T) {
	config, err := LoadForecastConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 2045, config.EndYear)
	assert.Equal(t, 2024, config.CurrentYear)
	assert.Equal(t, 5, config.SmoothingWindow)
	assert.Equal(t, 0.95, config.Logistic.Ceiling)
	// unset fields keep their defaults
	assert.Equal(t, 0.4, config.Logistic.DefaultK)
	assert.Equal(t, 300, config.Optimizer.MaxGenerations)
	assert.Equal(t, []string{"coal", "gas"}, config.Displacement.Sequence.Order)
	assert.Equal(t, 0.05, config.Displacement.Sequence.Floor("coal"))
	assert.Equal(t, 0.1, config.Displacement.DefaultBaselineShare)
	assert.Equal(t, 0.01, config.Validation.Consistency.Tolerance)
	assert.Equal(t, 0.8, config.Validation.Consistency.MaxYoYChange)

	entity, err := config.Entity("power")
	require.NoError(t, err)
	assert.True(t, entity.UsesDisplacement())
	assert.Equal(t, []string{"china", "europe"}, entity.Regions)

	_, err = config.Entity("steel")
	assert.Error(t, err)
}

func TestLoadForecastConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"malformed yaml", "end_year: [", false},
		{"invalid end year", "end_year: 1500", true},
		{"single displacement alternative", "displacement:\n  order: [coal]", true},
		{"entity missing market", "entities:\n  cars:\n    challenger: bev\n    incumbent: ice", true},
		{"order differs from entity alternatives", `
displacement:
  order: [coal, gas]
entities:
  islands:
    challenger: solar
    incumbent: oil
    market: power
    alternatives: [hydro, oil]
`, true},
		{"region order differs from entity alternatives", `
regions:
  pacific:
    displacement_order: [coal, gas]
entities:
  islands:
    challenger: solar
    incumbent: oil
    market: power
    alternatives: [hydro, oil]
    regions: [pacific]
`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadForecastConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}

	_, err := LoadForecastConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestForRegion(t *testing.T) {
	config, err := LoadForecastConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	europe := config.ForRegion("europe")
	assert.Equal(t, []string{"gas", "coal"}, europe.Displacement.Sequence.Order)
	assert.Equal(t, 0.08, europe.Displacement.Sequence.Floor("gas"))
	assert.Equal(t, 0.05, europe.Displacement.Sequence.Floor("coal"))
	assert.Equal(t, 0.02, europe.Market.MaxCAGR)

	china := config.ForRegion("china")
	assert.Equal(t, []string{"coal", "gas"}, china.Displacement.Sequence.Order)
	assert.Equal(t, 0.03, china.Market.MaxCAGR)

	// overrides never leak into the global record
	assert.Equal(t, []string{"coal", "gas"}, config.Displacement.Sequence.Order)
	assert.Equal(t, 0.0, config.Displacement.Sequence.Floor("gas"))
}

func TestSaveForecastConfig_RoundTrip(t *testing.T) {
	config, err := LoadForecastConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "forecast.yaml")
	require.NoError(t, SaveForecastConfig(config, path))

	reloaded, err := LoadForecastConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config, reloaded)
}

func TestEntityConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		entity   EntityConfig
		problems int
	}{
		{"complete", EntityConfig{Challenger: "bev", Incumbent: "ice", Market: "cars"}, 0},
		{"missing everything", EntityConfig{}, 3},
		{"one alternative", EntityConfig{Challenger: "solar", Incumbent: "coal", Market: "power", Alternatives: []string{"coal"}}, 1},
		{"challenger as alternative", EntityConfig{Challenger: "solar", Incumbent: "coal", Market: "power", Alternatives: []string{"solar", "gas"}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.entity.Validate(), tt.problems)
		})
	}
}

func TestEntityConfig_CheckOrder(t *testing.T) {
	entity := EntityConfig{Challenger: "solar", Incumbent: "coal", Market: "power", Alternatives: []string{"coal", "gas", "oil"}}

	assert.NoError(t, entity.CheckOrder(nil))
	assert.NoError(t, entity.CheckOrder([]string{"oil", "coal", "gas"}))

	for _, order := range [][]string{
		{"coal", "gas"},
		{"coal", "gas", "hydro"},
		{"coal", "coal", "gas"},
		{"coal", "gas", "oil", "hydro"},
	} {
		err := entity.CheckOrder(order)
		assert.ErrorIs(t, err, displacement.ErrInvalidSequence, "order %v", order)
	}
}

func TestEntityIDs_Sorted(t *testing.T) {
	config := Default()
	config.Entities["trucks"] = EntityConfig{}
	config.Entities["cars"] = EntityConfig{}
	assert.Equal(t, []string{"cars", "trucks"}, config.EntityIDs())
}
