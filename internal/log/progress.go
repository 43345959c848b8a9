package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ProgressConfig configures progress reporting
type ProgressConfig struct {
	Output       io.Writer // Terminal the bar is drawn on, nil disables the bar
	ShowProgress bool
	ShowETA      bool
	BarWidth     int
}

// DefaultProgressConfig draws a bar with ETA on out
func DefaultProgressConfig(out io.Writer) ProgressConfig {
	return ProgressConfig{
		Output:       out,
		ShowProgress: true,
		ShowETA:      true,
		BarWidth:     20,
	}
}

// QuietProgressConfig reports through the logger only
func QuietProgressConfig() ProgressConfig {
	return ProgressConfig{BarWidth: 20}
}

// ProgressIndicator tracks completion of a batch of independent items. Safe for
// concurrent use by batch workers.
type ProgressIndicator struct {
	mu        sync.Mutex
	name      string
	total     int
	done      int
	failed    int
	startTime time.Time
	config    ProgressConfig
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator(name string, total int, config ProgressConfig) *ProgressIndicator {
	if config.BarWidth <= 0 {
		config.BarWidth = 20
	}
	return &ProgressIndicator{
		name:      name,
		total:     total,
		startTime: time.Now(),
		config:    config,
	}
}

// Complete records one finished item; err marks it failed
func (pi *ProgressIndicator) Complete(item string, err error) {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	pi.done++
	if err != nil {
		pi.failed++
		log.Warn().
			Err(err).
			Str("item", item).
			Int("done", pi.done).
			Int("total", pi.total).
			Msg("Batch item failed")
	} else {
		log.Info().
			Str("item", item).
			Int("done", pi.done).
			Int("total", pi.total).
			Msg("Batch item completed")
	}

	if pi.config.Output != nil && (pi.config.ShowProgress || pi.config.ShowETA) {
		fmt.Fprint(pi.config.Output, pi.render(item))
	}
}

// Counts returns the completed and failed item counts
func (pi *ProgressIndicator) Counts() (done, failed int) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.done, pi.failed
}

// Finish logs the batch summary and terminates the progress line
func (pi *ProgressIndicator) Finish() {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	duration := time.Since(pi.startTime)
	if pi.config.Output != nil {
		fmt.Fprintln(pi.config.Output)
	}

	event := log.Info()
	if pi.failed > 0 {
		event = log.Warn()
	}
	event.
		Str("batch", pi.name).
		Int("total", pi.total).
		Int("failed", pi.failed).
		Dur("duration", duration.Round(time.Millisecond)).
		Msg("Batch completed")
}

// render builds the progress line for the current state
func (pi *ProgressIndicator) render(message string) string {
	var output strings.Builder

	// Clear line and return to beginning
	output.WriteString("\r\033[K")
	output.WriteString(pi.name)

	if pi.config.ShowProgress && pi.total > 0 {
		percentage := float64(pi.done) / float64(pi.total) * 100
		filled := pi.config.BarWidth * pi.done / pi.total

		output.WriteString(" [")
		output.WriteString(strings.Repeat("█", filled))
		output.WriteString(strings.Repeat("░", pi.config.BarWidth-filled))
		output.WriteString(fmt.Sprintf("] %d/%d (%.1f%%)", pi.done, pi.total, percentage))
	} else if pi.total > 0 {
		output.WriteString(fmt.Sprintf(" (%d/%d)", pi.done, pi.total))
	}

	if pi.failed > 0 {
		output.WriteString(fmt.Sprintf(" %d failed", pi.failed))
	}

	if pi.config.ShowETA && pi.total > 0 && pi.done > 0 && pi.done < pi.total {
		output.WriteString(" ETA: ")
		output.WriteString(pi.eta().String())
	}

	if message != "" {
		output.WriteString(" - ")
		output.WriteString(message)
	}

	return output.String()
}

// eta extrapolates the remaining time from the average item duration so far
func (pi *ProgressIndicator) eta() time.Duration {
	elapsed := time.Since(pi.startTime)
	perItem := elapsed / time.Duration(pi.done)
	eta := perItem * time.Duration(pi.total-pi.done)
	if eta > time.Hour {
		return eta.Round(time.Minute)
	}
	return eta.Round(time.Second)
}
