package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/disruptrun/internal/application/forecast"
	"github.com/sawpanic/disruptrun/internal/datasources"
	"github.com/sawpanic/disruptrun/internal/interfaces/output"
	applog "github.com/sawpanic/disruptrun/internal/log"
	"github.com/sawpanic/disruptrun/internal/metrics"
)

type batchOptions struct {
	entities    []string
	regions     []string
	workers     int
	outDir      string
	metricsFile string
	progress    string
}

func newBatchCmd() *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Forecast many entities and regions concurrently",
		Long: `Forecast every requested (entity, region) pair with a bounded worker pool.

Without --entities every configured entity runs. Without --regions each entity
runs over its own configured regions. Failed items are reported and do not stop
the batch; the command exits non-zero when any item failed.

Examples:
  disruptrun batch --out-dir out/
  disruptrun batch --entities cars,power --regions eu,us --workers 4 --metrics-file out/metrics.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.entities, "entities", nil, "Comma-separated entity IDs (default: all)")
	cmd.Flags().StringSliceVar(&opts.regions, "regions", nil, "Comma-separated regions (default: per entity)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent forecasts (default: GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.outDir, "out-dir", "out", "Directory for per-item CSV/JSON and the summary")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().StringVar(&opts.progress, "progress", "auto", "Progress output mode (auto|plain|none)")
	return cmd
}

func runBatch(ctx context.Context, out io.Writer, opts *batchOptions) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	fileSource, err := datasources.NewFileSource(dataPath)
	if err != nil {
		return err
	}
	source := datasources.NewCachedSource(fileSource)

	items, err := forecast.Items(cfg, opts.entities, opts.regions)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no entities configured in %s", configPath)
	}

	m := metrics.NewMetricsRegistry()
	forecaster := forecast.NewForecaster(cfg, source, forecast.WithMetrics(m))
	progress, err := progressConfig(opts.progress)
	if err != nil {
		return err
	}

	results := forecast.NewBatchRunner(forecaster, opts.workers).Run(ctx, items, progress)

	stats := source.Stats()
	m.SetCacheHitRatio(stats.HitRate)
	log.Info().
		Int("entries", stats.Entries).
		Int64("hits", stats.Hits).
		Int64("misses", stats.Misses).
		Float64("hit_rate", stats.HitRate).
		Msg("Data cache statistics")

	if err := writeBatchOutputs(opts.outDir, results); err != nil {
		return err
	}
	if opts.metricsFile != "" {
		if err := m.WriteToTextfile(opts.metricsFile); err != nil {
			return err
		}
		log.Info().Str("path", opts.metricsFile).Msg("Metrics written")
	}

	printBatchSummary(out, results)
	if failed := forecast.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d forecasts failed", len(failed), len(results))
	}
	return nil
}

func writeBatchOutputs(dir string, results []forecast.BatchResult) error {
	emitter := output.NewEmitter()
	for _, r := range results {
		if r.Result == nil {
			continue
		}
		base := filepath.Join(dir, fmt.Sprintf("%s_%s", r.Item.Entity, r.Item.Region))
		if err := emitter.EmitDecompositionCSV(base+".csv", r.Result); err != nil {
			return err
		}
		if err := emitter.EmitResultJSON(base+".json", r.Result); err != nil {
			return err
		}
	}
	summaryPath := filepath.Join(dir, "summary.csv")
	if err := emitter.EmitBatchSummaryCSV(summaryPath, results); err != nil {
		return err
	}
	log.Info().Str("dir", dir).Int("items", len(results)).Msg("Batch outputs written")
	return nil
}

func progressConfig(mode string) (applog.ProgressConfig, error) {
	switch mode {
	case "auto":
		if term.IsTerminal(int(os.Stderr.Fd())) {
			return applog.DefaultProgressConfig(os.Stderr), nil
		}
		return applog.QuietProgressConfig(), nil
	case "plain":
		return applog.DefaultProgressConfig(os.Stderr), nil
	case "none":
		return applog.QuietProgressConfig(), nil
	default:
		return applog.ProgressConfig{}, fmt.Errorf("unknown progress mode %q (auto|plain|none)", mode)
	}
}

func printBatchSummary(out io.Writer, results []forecast.BatchResult) {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	for _, r := range results {
		switch {
		case r.Err != nil:
			fail.Fprintf(out, "✗ %-24s %v\n", r.Item, r.Err)
		case !r.Result.Validation.Passed:
			warn.Fprintf(out, "! %-24s tipping %s, %d validation errors\n",
				r.Item, r.Result.TippingPoint, len(r.Result.Validation.Errors()))
		default:
			pass.Fprintf(out, "✓ %-24s tipping %s, %s\n", r.Item, r.Result.TippingPoint, r.Result.Fit.Params)
		}
	}

	failed := len(forecast.Failed(results))
	summary := fmt.Sprintf("%d forecasts, %d succeeded, %d failed\n", len(results), len(results)-failed, failed)
	if failed > 0 {
		fail.Fprint(out, summary)
	} else {
		pass.Fprint(out, summary)
	}
}
