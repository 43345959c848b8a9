package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds the Prometheus metrics of forecast runs. Metrics live on a
// private registry; all Record methods are safe on a nil receiver.
type MetricsRegistry struct {
	registry *prometheus.Registry

	// Step duration metrics
	StepDuration  *prometheus.HistogramVec
	PipelineSteps *prometheus.CounterVec

	// Forecast outcome metrics
	Forecasts       *prometheus.CounterVec
	ActiveForecasts prometheus.Gauge
	TippingOutcomes *prometheus.CounterVec

	// Fitting metrics
	FitFallbacks           *prometheus.CounterVec
	ExtrapolationFallbacks *prometheus.CounterVec
	OptimizerEvaluations   prometheus.Histogram

	// Validation metrics
	Violations *prometheus.CounterVec

	// Data source metrics
	CacheHitRatio prometheus.Gauge
}

// NewMetricsRegistry creates and registers all forecast metrics
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "disruptrun_step_duration_seconds",
				Help:    "Duration of each forecast pipeline step in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"step", "result"},
		),

		PipelineSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disruptrun_pipeline_steps_total",
				Help: "Total number of pipeline steps executed",
			},
			[]string{"step", "result"},
		),

		Forecasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disruptrun_forecasts_total",
				Help: "Total number of (entity, region) forecasts by status",
			},
			[]string{"status"},
		),

		ActiveForecasts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "disruptrun_active_forecasts",
				Help: "Number of forecasts currently running",
			},
		),

		TippingOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disruptrun_tipping_outcomes_total",
				Help: "Tipping-point detection outcomes by kind",
			},
			[]string{"kind"},
		),

		FitFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disruptrun_fit_fallbacks_total",
				Help: "Logistic fits that fell back to default parameters, by reason",
			},
			[]string{"reason"},
		),

		ExtrapolationFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disruptrun_extrapolation_fallbacks_total",
				Help: "Extrapolations that fell back to a flat forecast, by series",
			},
			[]string{"series"},
		),

		OptimizerEvaluations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "disruptrun_optimizer_evaluations",
				Help:    "Objective evaluations per logistic fit",
				Buckets: prometheus.ExponentialBuckets(100, 2, 10),
			},
		),

		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "disruptrun_validation_violations_total",
				Help: "Consistency violations reported, by check and severity",
			},
			[]string{"check", "severity"},
		),

		CacheHitRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "disruptrun_cache_hit_ratio",
				Help: "Historical data cache hit ratio (0.0 to 1.0)",
			},
		),
	}

	m.registry.MustRegister(
		m.StepDuration,
		m.PipelineSteps,
		m.Forecasts,
		m.ActiveForecasts,
		m.TippingOutcomes,
		m.FitFallbacks,
		m.ExtrapolationFallbacks,
		m.OptimizerEvaluations,
		m.Violations,
		m.CacheHitRatio,
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *MetricsRegistry) Registry() *prometheus.Registry { return m.registry }

// StepTimer tracks execution time for pipeline steps
type StepTimer struct {
	metrics *MetricsRegistry
	step    string
	start   time.Time
}

// StartStepTimer begins timing a pipeline step
func (m *MetricsRegistry) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: m, step: step, start: time.Now()}
}

// Stop completes the step timing and records the metric
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	if st.metrics != nil {
		st.metrics.StepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())
		st.metrics.PipelineSteps.WithLabelValues(st.step, result).Inc()
	}

	log.Debug().
		Str("step", st.step).
		Str("result", result).
		Dur("duration", duration).
		Msg("Pipeline step completed")
}

// RecordForecast counts a finished forecast with status "ok" or "error"
func (m *MetricsRegistry) RecordForecast(status string) {
	if m == nil {
		return
	}
	m.Forecasts.WithLabelValues(status).Inc()
}

// IncrementActiveForecasts increments the running forecast gauge
func (m *MetricsRegistry) IncrementActiveForecasts() {
	if m == nil {
		return
	}
	m.ActiveForecasts.Inc()
}

// DecrementActiveForecasts decrements the running forecast gauge
func (m *MetricsRegistry) DecrementActiveForecasts() {
	if m == nil {
		return
	}
	m.ActiveForecasts.Dec()
}

// RecordTipping counts a tipping-point outcome
func (m *MetricsRegistry) RecordTipping(kind string) {
	if m == nil {
		return
	}
	m.TippingOutcomes.WithLabelValues(kind).Inc()
}

// RecordFit records the optimizer work of a logistic fit and its fallback reason, if any
func (m *MetricsRegistry) RecordFit(evaluations int, fallbackReason string) {
	if m == nil {
		return
	}
	if evaluations > 0 {
		m.OptimizerEvaluations.Observe(float64(evaluations))
	}
	if fallbackReason != "" {
		m.FitFallbacks.WithLabelValues(fallbackReason).Inc()
	}
}

// RecordExtrapolationFallback counts a flat-forecast fallback for a series role
func (m *MetricsRegistry) RecordExtrapolationFallback(series string) {
	if m == nil {
		return
	}
	m.ExtrapolationFallbacks.WithLabelValues(series).Inc()
}

// RecordViolation counts a validation violation
func (m *MetricsRegistry) RecordViolation(check, severity string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(check, severity).Inc()
}

// SetCacheHitRatio publishes the data cache hit ratio
func (m *MetricsRegistry) SetCacheHitRatio(ratio float64) {
	if m == nil {
		return
	}
	m.CacheHitRatio.Set(ratio)
}

// ForecastCount reads the forecasts counter for status
func (m *MetricsRegistry) ForecastCount(status string) float64 {
	if m == nil {
		return 0
	}
	counter, err := m.Forecasts.GetMetricWithLabelValues(status)
	if err != nil {
		return 0
	}
	metric := &dto.Metric{}
	if err := counter.Write(metric); err != nil {
		return 0
	}
	return metric.GetCounter().GetValue()
}

// ActiveCount reads the running forecast gauge
func (m *MetricsRegistry) ActiveCount() float64 {
	if m == nil {
		return 0
	}
	metric := &dto.Metric{}
	if err := m.ActiveForecasts.Write(metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

// WriteToTextfile dumps the registry in the node-exporter textfile collector format
func (m *MetricsRegistry) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
