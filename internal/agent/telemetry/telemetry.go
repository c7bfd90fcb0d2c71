package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry tracks pipeline run and step outcomes for the /metrics endpoint.
type Telemetry struct {
	runsStarted   prometheus.Counter
	runsFinished  *prometheus.CounterVec
	runDuration   prometheus.Histogram
	stepDuration  *prometheus.HistogramVec
	stepOutcomes  *prometheus.CounterVec
	quoteOutcomes *prometheus.CounterVec
}

// New registers the pipeline metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Telemetry {
	factory := promauto.With(reg)
	return &Telemetry{
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "safar_agent_runs_started_total",
			Help: "Agent runs started.",
		}),
		runsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safar_agent_runs_finished_total",
			Help: "Agent runs finished, by terminal status.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "safar_agent_run_duration_seconds",
			Help:    "Wall time of a full agent run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "safar_agent_step_duration_seconds",
			Help:    "Wall time of individual pipeline steps.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"step"}),
		stepOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safar_agent_step_outcomes_total",
			Help: "Step completions, by step and status.",
		}, []string{"step", "status"}),
		quoteOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safar_agent_quote_outcomes_total",
			Help: "Quote materialization outcomes after successful runs.",
		}, []string{"status"}),
	}
}

// RecordRunStart counts a run entering RUNNING.
func (t *Telemetry) RecordRunStart() {
	if t == nil {
		return
	}
	t.runsStarted.Inc()
}

// RecordRunEnd counts a run reaching a terminal status.
func (t *Telemetry) RecordRunEnd(status string, d time.Duration) {
	if t == nil {
		return
	}
	t.runsFinished.WithLabelValues(status).Inc()
	t.runDuration.Observe(d.Seconds())
}

// RecordStep counts one step transition to DONE or FAILED.
func (t *Telemetry) RecordStep(step, status string, d time.Duration) {
	if t == nil {
		return
	}
	t.stepOutcomes.WithLabelValues(step, status).Inc()
	t.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordQuote counts a quote materialization outcome.
func (t *Telemetry) RecordQuote(status string) {
	if t == nil {
		return
	}
	t.quoteOutcomes.WithLabelValues(status).Inc()
}
