package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/disruptrun/internal/application/forecast"
	"github.com/sawpanic/disruptrun/internal/config"
	"github.com/sawpanic/disruptrun/internal/datasources"
	"github.com/sawpanic/disruptrun/internal/series"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check forecast configuration",
	}

	var force, sampleData bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration with an example entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), force, sampleData)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	initCmd.Flags().BoolVar(&sampleData, "sample-data", false, "Also write a synthetic dataset to --data")

	var checkData bool
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and, optionally, dataset coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd.Context(), cmd.OutOrStdout(), checkData)
		},
	}
	validateCmd.Flags().BoolVar(&checkData, "check-data", false, "Check that --data holds every required series")

	configCmd.AddCommand(initCmd, validateCmd)
	return configCmd
}

func runConfigInit(out io.Writer, force, sampleData bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.Default()
	cfg.Entities["road_transport"] = config.EntityConfig{
		Description: "Battery electric vehicles displacing combustion cars",
		Challenger:  "bev",
		Incumbent:   "ice",
		Market:      "passenger_cars",
		Bridge:      "phev",
		Regions:     []string{forecast.GlobalRegion},
	}
	if err := config.SaveForecastConfig(cfg, configPath); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(out, "✓ Wrote %s\n", configPath)

	if sampleData {
		if err := datasources.WriteDataset(sampleDataset(), dataPath); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(out, "✓ Wrote %s\n", dataPath)
	}
	return nil
}

// sampleDataset generates a synthetic history matching the example entity
func sampleDataset() datasources.Dataset {
	years := series.YearRange(2012, 2024)
	gen := func(fn func(i int) float64) map[string]datasources.RawSeries {
		values := make([]float64, len(years))
		for i := range years {
			values[i] = math.Round(fn(i)*100) / 100
		}
		return map[string]datasources.RawSeries{forecast.GlobalRegion: {Years: years, Values: values}}
	}
	market := func(i int) float64 { return 70e6 + 1.2e6*float64(i) }
	bevShare := func(i int) float64 { return 1 / (1 + math.Exp(-0.45*(float64(i)-14))) }

	return datasources.Dataset{Products: map[string]datasources.ProductData{
		"passenger_cars": {Demand: gen(market)},
		"bev": {
			Cost:   gen(func(i int) float64 { return 52000 * math.Pow(0.93, float64(i)) }),
			Demand: gen(func(i int) float64 { return bevShare(i) * market(i) }),
		},
		"ice": {
			Cost: gen(func(i int) float64 { return 27000 * math.Pow(1.01, float64(i)) }),
		},
		"phev": {
			Demand: gen(func(i int) float64 { return 0.4 * bevShare(i) * market(i) }),
		},
	}}
}

func runConfigValidate(ctx context.Context, out io.Writer, checkData bool) error {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)

	cfg, err := loadConfig(configPath)
	if errors.Is(err, config.ErrInvalidConfig) {
		fail.Fprintf(out, "✗ %s: %v\n", configPath, err)
		return err
	}
	if err != nil {
		return err
	}
	pass.Fprintf(out, "✓ %s is valid (%d entities)\n", configPath, len(cfg.Entities))

	if !checkData {
		return nil
	}

	source, err := datasources.NewFileSource(dataPath)
	if err != nil {
		return err
	}
	items, err := forecast.Items(cfg, nil, nil)
	if err != nil {
		return err
	}

	missing := 0
	for _, item := range items {
		entity, _ := cfg.Entity(item.Entity)
		for _, req := range requiredSeries(entity) {
			_, err := req.fetch(ctx, source, item.Region)
			if errors.Is(err, datasources.ErrSeriesNotFound) {
				missing++
				fail.Fprintf(out, "✗ %s: missing %s %s\n", item, req.product, req.kind)
				continue
			}
			if err != nil {
				return err
			}
		}
	}

	if missing > 0 {
		return fmt.Errorf("%d required series missing from %s", missing, dataPath)
	}
	pass.Fprintf(out, "✓ %s covers %d forecasts\n", dataPath, len(items))
	log.Debug().Int("items", len(items)).Msg("Dataset coverage checked")
	return nil
}

type seriesRequirement struct {
	product string
	kind    datasources.Kind
}

func (r seriesRequirement) fetch(ctx context.Context, source datasources.HistoricalDataSource, region string) (series.TimeSeries, error) {
	if r.kind == datasources.KindCost {
		return source.CostSeries(ctx, r.product, region)
	}
	return source.DemandSeries(ctx, r.product, region)
}

func requiredSeries(entity config.EntityConfig) []seriesRequirement {
	return []seriesRequirement{
		{entity.Challenger, datasources.KindCost},
		{entity.Incumbent, datasources.KindCost},
		{entity.Market, datasources.KindDemand},
		{entity.Challenger, datasources.KindDemand},
	}
}
