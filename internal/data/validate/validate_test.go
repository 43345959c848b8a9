package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/disruptrun/internal/series"
)

func named(name string, years []int, values []float64) series.TimeSeries {
	return series.MustNew(years, values).Named(name)
}

func TestConsistencyValidator_SumEqualToMarketPasses(t *testing.T) {
	years := []int{2020, 2021, 2022}
	market := named("market", years, []float64{1000, 1100, 1200})
	challenger := named("challenger", years, []float64{100, 200, 300})
	incumbent := named("incumbent", years, []float64{900, 900, 900})

	for _, relative := range []bool{true, false} {
		config := DefaultConsistencyConfig()
		config.Relative = relative
		config.Tolerance = 0

		report := NewConsistencyValidator(config).Validate(market, []series.TimeSeries{challenger, incumbent})

		assert.True(t, report.Passed)
		assert.Empty(t, report.CountByCheck()[CheckSumExceedsMarket])
	}
}

func TestConsistencyValidator_SumAboveMarket(t *testing.T) {
	years := []int{2020, 2021}
	market := named("market", years, []float64{1000, 1000})
	challenger := named("challenger", years, []float64{500, 504})
	incumbent := named("incumbent", years, []float64{500, 500})

	tests := []struct {
		name       string
		tolerance  float64
		relative   bool
		violations int
	}{
		{"relative tolerance absorbs small excess", 0.005, true, 0},
		{"tight relative tolerance flags excess", 0.001, true, 1},
		{"absolute tolerance absorbs small excess", 5, false, 0},
		{"tight absolute tolerance flags excess", 1, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConsistencyConfig()
			config.Tolerance = tt.tolerance
			config.Relative = tt.relative

			report := NewConsistencyValidator(config).Validate(market, []series.TimeSeries{challenger, incumbent})

			assert.Len(t, report.Errors(), tt.violations)
			assert.Equal(t, tt.violations == 0, report.Passed)
			if tt.violations > 0 {
				v := report.Errors()[0]
				assert.Equal(t, CheckSumExceedsMarket, v.Check)
				assert.Equal(t, 2021, v.Year)
				assert.Equal(t, 1004.0, v.Value)
			}
		})
	}
}

func TestConsistencyValidator_IndependentChecks(t *testing.T) {
	years := []int{2020, 2021, 2022}
	market := named("market", years, []float64{100, 100, 100})
	challenger := named("challenger", years, []float64{10, 40, 150})
	incumbent := named("incumbent", years, []float64{90, -5, 10})

	report := NewConsistencyValidator(DefaultConsistencyConfig()).Validate(market, []series.TimeSeries{challenger, incumbent})

	counts := report.CountByCheck()
	assert.False(t, report.Passed)
	assert.Equal(t, 1, counts[CheckNegativeValue])
	assert.Equal(t, 1, counts[CheckSumExceedsMarket])
	assert.GreaterOrEqual(t, counts[CheckYoYJump], 2)
	assert.Equal(t, 2, counts[CheckCAGRBound])

	for _, v := range report.Warnings() {
		assert.Contains(t, []Check{CheckYoYJump, CheckCAGRBound}, v.Check)
		assert.NotEmpty(t, v.Message)
	}
}

func TestConsistencyValidator_WarningsDoNotFail(t *testing.T) {
	years := []int{2020, 2021}
	market := named("market", years, []float64{100, 300})
	challenger := named("challenger", years, []float64{10, 100})

	report := NewConsistencyValidator(DefaultConsistencyConfig()).Validate(market, []series.TimeSeries{challenger})

	assert.True(t, report.Passed)
	assert.NotEmpty(t, report.Warnings())
	assert.Empty(t, report.Errors())
}

func TestConsistencyValidator_DoesNotMutate(t *testing.T) {
	years := []int{2020, 2021}
	market := named("market", years, []float64{100, 100})
	component := named("incumbent", years, []float64{-1, 200})
	before := component.Values()

	NewConsistencyValidator(DefaultConsistencyConfig()).Validate(market, []series.TimeSeries{component})

	assert.Equal(t, before, component.Values())
}

func TestConsistencyConfig_Validate(t *testing.T) {
	assert.Empty(t, DefaultConsistencyConfig().Validate())
	assert.NotEmpty(t, ConsistencyConfig{Tolerance: -1}.Validate())
	assert.NotEmpty(t, ConsistencyConfig{Tolerance: 0.5, Relative: true}.Validate())
}

func TestAnomalyChecker_FlagsSpike(t *testing.T) {
	history := named("bev_cost", series.YearRange(2015, 2023), []float64{100, 95, 90, 86, 400, 78, 74, 70, 67})

	report := NewAnomalyChecker(AnomalyConfig{}).Check(history)

	require.Len(t, report.Violations, 1)
	v := report.Violations[0]
	assert.Equal(t, CheckOutlier, v.Check)
	assert.Equal(t, 2019, v.Year)
	assert.True(t, report.Passed)
}

func TestAnomalyChecker_ShortSeriesSkipped(t *testing.T) {
	history := named("bev_cost", []int{2020, 2021, 2022}, []float64{1, 100, 1})
	assert.Empty(t, NewAnomalyChecker(DefaultAnomalyConfig()).Check(history).Violations)
}

func TestStalenessChecker(t *testing.T) {
	checker := NewStalenessChecker(DefaultStalenessConfig())
	history := named("market", []int{2015, 2016, 2017}, []float64{1, 2, 3})

	assert.Empty(t, checker.Check(history, 2020).Violations)

	report := checker.Check(history, 2024)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, CheckStaleHistory, report.Violations[0].Check)
	assert.Equal(t, 7.0, report.Violations[0].Value)
}

func TestReport_Merge(t *testing.T) {
	a := NewReport()
	a.Add(Violation{Check: CheckYoYJump, Severity: SeverityWarning})
	b := NewReport()
	b.Add(Violation{Check: CheckNegativeValue, Severity: SeverityError})

	a.Merge(b)
	a.Merge(nil)

	assert.False(t, a.Passed)
	assert.Len(t, a.Violations, 2)
}
