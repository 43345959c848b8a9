package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/disruptrun/internal/config"
)

const (
	appName = "DisruptRun"
	version = "v0.4.0"
)

var (
	logLevel   string
	logJSON    bool
	configPath string
	dataPath   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "disruptrun",
		Short:   "Technology disruption forecaster",
		Version: version,
		Long: `DisruptRun forecasts how a cheaper challenger technology displaces an incumbent.

For every (entity, region) it extrapolates cost curves, finds the cost tipping point,
fits a logistic adoption curve, models bridge technologies and splits the residual
market among legacy alternatives. Outputs are checked for consistency before export.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(os.Stderr, logLevel, logJSON)
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Force JSON logs even on a terminal")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetForecastConfigPath(), "Forecast configuration file")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "data/history.json", "Historical dataset file")

	rootCmd.AddCommand(newForecastCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newConfigCmd())
	return rootCmd
}

// setupLogging writes human-readable logs to terminals and JSON lines otherwise
func setupLogging(out *os.File, level string, forceJSON bool) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(parsed)
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = out
	if !forceJSON && term.IsTerminal(int(out.Fd())) {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Str("app", appName).Logger()
	return nil
}
