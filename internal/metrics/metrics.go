// Package metrics holds the Prometheus collectors for one pipeline run.
//
// Each Metrics owns its registry, so concurrent runs and tests never
// share counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors recorded during a run.
type Metrics struct {
	registry *prometheus.Registry

	RowsIngested  *prometheus.CounterVec
	RowsSkipped   *prometheus.CounterVec
	BadTimestamps *prometheus.CounterVec
	Samples       *prometheus.CounterVec

	QueryFailures *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	StageDuration *prometheus.HistogramVec

	ScorerFallbacks prometheus.Counter
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RowsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perception_rows_ingested_total",
				Help: "Posts loaded into the store, by source",
			},
			[]string{"source"},
		),
		RowsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perception_rows_skipped_total",
				Help: "Malformed input rows dropped during normalization, by source",
			},
			[]string{"source"},
		),
		BadTimestamps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perception_bad_timestamps_total",
				Help: "Posts loaded without a parseable timestamp, by source",
			},
			[]string{"source"},
		),
		Samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perception_sentiment_samples_total",
				Help: "Sentiment samples scored, by source",
			},
			[]string{"source"},
		),
		QueryFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "perception_query_failures_total",
				Help: "Report queries that failed, by query name",
			},
			[]string{"query"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "perception_query_duration_seconds",
				Help:    "Duration of report queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"query"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "perception_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"stage"},
		),
		ScorerFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "perception_scorer_fallbacks_total",
				Help: "Texts scored by the lexicon after the model scorer failed",
			},
		),
	}

	m.registry.MustRegister(
		m.RowsIngested,
		m.RowsSkipped,
		m.BadTimestamps,
		m.Samples,
		m.QueryFailures,
		m.QueryDuration,
		m.StageDuration,
		m.ScorerFallbacks,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIngest adds the counts of one source load.
func (m *Metrics) RecordIngest(source string, rows, skipped, badTimestamps int) {
	m.RowsIngested.WithLabelValues(source).Add(float64(rows))
	m.RowsSkipped.WithLabelValues(source).Add(float64(skipped))
	m.BadTimestamps.WithLabelValues(source).Add(float64(badTimestamps))
}

// RecordQuery observes one report query.
func (m *Metrics) RecordQuery(name string, d time.Duration, failed bool) {
	m.QueryDuration.WithLabelValues(name).Observe(d.Seconds())
	if failed {
		m.QueryFailures.WithLabelValues(name).Inc()
	}
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
