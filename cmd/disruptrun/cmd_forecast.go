package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/disruptrun/internal/application/forecast"
	"github.com/sawpanic/disruptrun/internal/config"
	"github.com/sawpanic/disruptrun/internal/datasources"
	"github.com/sawpanic/disruptrun/internal/interfaces/output"
)

type forecastOptions struct {
	entity  string
	region  string
	csvPath string
	jsonOut string
}

func newForecastCmd() *cobra.Command {
	opts := &forecastOptions{}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast one entity in one region",
		Long: `Run the full disruption pipeline for a single (entity, region).

Examples:
  disruptrun forecast --entity cars --region eu
  disruptrun forecast --entity power --csv out/power.csv --json out/power.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.entity, "entity", "", "Entity ID from the config (required)")
	cmd.Flags().StringVar(&opts.region, "region", forecast.GlobalRegion, "Region to forecast")
	addOutputFlags(cmd.Flags(), opts)
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func addOutputFlags(fs *pflag.FlagSet, opts *forecastOptions) {
	fs.StringVar(&opts.csvPath, "csv", "", "Write the decomposition table to this CSV file")
	fs.StringVar(&opts.jsonOut, "json", "", "Write the full result to this JSON file")
}

func runForecast(ctx context.Context, out io.Writer, opts *forecastOptions) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	source, err := datasources.NewFileSource(dataPath)
	if err != nil {
		return err
	}

	result, err := forecast.NewForecaster(cfg, source).Run(ctx, opts.entity, opts.region)
	if err != nil {
		return err
	}

	emitter := output.NewEmitter()
	if opts.csvPath != "" {
		if err := emitter.EmitDecompositionCSV(opts.csvPath, result); err != nil {
			return err
		}
		log.Info().Str("path", opts.csvPath).Msg("Decomposition written")
	}
	if opts.jsonOut != "" {
		if err := emitter.EmitResultJSON(opts.jsonOut, result); err != nil {
			return err
		}
		log.Info().Str("path", opts.jsonOut).Msg("Result written")
	}

	printResult(out, result)
	return nil
}

func loadConfig(path string) (*config.ForecastConfig, error) {
	cfg, err := config.LoadForecastConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w (run 'disruptrun config init' to create one)", err)
	}
	return cfg, err
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// printResult writes a short colored summary of one forecast
func printResult(out io.Writer, result *forecast.Result) {
	bold := color.New(color.Bold)
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	bold.Fprintf(out, "%s / %s\n", result.Entity, result.Region)
	fmt.Fprintf(out, "  Run:            %s\n", result.RunID)

	if result.TippingPoint.Exists() {
		pass.Fprintf(out, "  Tipping point:  %s\n", result.TippingPoint)
	} else {
		warn.Fprintf(out, "  Tipping point:  none before %d\n", result.Decomposition.Market.LastYear())
	}

	fmt.Fprintf(out, "  Cost CAGR:      challenger %+.2f%%, incumbent %+.2f%%\n",
		result.ChallengerCostCAGR*100, result.IncumbentCostCAGR*100)
	if result.CurrentCostGap != nil {
		fmt.Fprintf(out, "  Cost gap %d:  %+.2f\n", result.CurrentYear, *result.CurrentCostGap)
	}

	fit := fmt.Sprintf("  Adoption fit:   %s", result.Fit.Params)
	if result.Fit.Fallback {
		warn.Fprintf(out, "%s (fallback: %s)\n", fit, result.Fit.FallbackReason)
	} else {
		fmt.Fprintf(out, "%s (SSE %.2e)\n", fit, result.Fit.SSE)
	}

	if result.BaselineStrategy != "" {
		fmt.Fprintf(out, "  Baseline:       %s\n", result.BaselineStrategy)
	}

	if result.Validation.Passed {
		pass.Fprintf(out, "  Validation:     PASS (%d warnings)\n", len(result.Validation.Warnings()))
	} else {
		fail.Fprintf(out, "  Validation:     FAIL (%d errors)\n", len(result.Validation.Errors()))
		for _, v := range result.Validation.Errors() {
			fail.Fprintf(out, "    - %s\n", v.Error())
		}
	}
	if n := len(result.InputChecks.Violations); n > 0 {
		warn.Fprintf(out, "  Input checks:   %d findings\n", n)
	}
}
