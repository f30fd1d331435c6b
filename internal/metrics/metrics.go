/*
Package metrics provides Prometheus instrumentation for the Stride engine.

Every Metrics value owns a private registry so engines (and tests) never collide
on the default registerer. The surrounding service exposes Registry() through
promhttp if it wants a scrape endpoint.

Available metrics:
  - stride_extractor_runs_total{pattern_type,outcome}: ok, insufficient, error
  - stride_recommendations_total{type}
  - stride_feedback_total{sentiment}: positive, neutral, negative
  - stride_similarity_candidates_total{outcome}: scored, skipped, cancelled
  - stride_background_tasks_total{outcome}: ok, error, dropped
  - stride_synthesis_duration_seconds
*/
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"
	OutcomeScored       = "scored"
	OutcomeSkipped      = "skipped"
	OutcomeCancelled    = "cancelled"
	OutcomeDropped      = "dropped"
)

// Metrics groups the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	ExtractorRuns        *prometheus.CounterVec
	Recommendations      *prometheus.CounterVec
	Feedback             *prometheus.CounterVec
	SimilarityCandidates *prometheus.CounterVec
	BackgroundTasks      *prometheus.CounterVec
	SynthesisDuration    prometheus.Histogram
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ExtractorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_extractor_runs_total",
			Help: "Pattern extractor runs by pattern type and outcome.",
		}, []string{"pattern_type", "outcome"}),
		Recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_recommendations_total",
			Help: "Recommendations emitted by the synthesizer.",
		}, []string{"type"}),
		Feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_feedback_total",
			Help: "Feedback ratings received by sentiment.",
		}, []string{"sentiment"}),
		SimilarityCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_similarity_candidates_total",
			Help: "Peer similarity candidates by outcome.",
		}, []string{"outcome"}),
		BackgroundTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stride_background_tasks_total",
			Help: "Fire-and-forget analysis tasks by outcome.",
		}, []string{"outcome"}),
		SynthesisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stride_synthesis_duration_seconds",
			Help:    "Time spent producing recommendations for one user.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5},
		}),
	}

	m.registry.MustRegister(
		m.ExtractorRuns,
		m.Recommendations,
		m.Feedback,
		m.SimilarityCandidates,
		m.BackgroundTasks,
		m.SynthesisDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveExtractor counts one extractor run.
func (m *Metrics) ObserveExtractor(patternType, outcome string) {
	if m == nil {
		return
	}
	m.ExtractorRuns.WithLabelValues(patternType, outcome).Inc()
}

// ObserveRecommendation counts one emitted recommendation.
func (m *Metrics) ObserveRecommendation(recType string) {
	if m == nil {
		return
	}
	m.Recommendations.WithLabelValues(recType).Inc()
}

// ObserveFeedback counts one rating by sentiment.
func (m *Metrics) ObserveFeedback(sentiment string) {
	if m == nil {
		return
	}
	m.Feedback.WithLabelValues(sentiment).Inc()
}

// ObserveCandidate counts one similarity candidate.
func (m *Metrics) ObserveCandidate(outcome string) {
	if m == nil {
		return
	}
	m.SimilarityCandidates.WithLabelValues(outcome).Inc()
}

// ObserveTask counts one background task outcome.
func (m *Metrics) ObserveTask(outcome string) {
	if m == nil {
		return
	}
	m.BackgroundTasks.WithLabelValues(outcome).Inc()
}

// ObserveSynthesis records a synthesis duration.
func (m *Metrics) ObserveSynthesis(d time.Duration) {
	if m == nil {
		return
	}
	m.SynthesisDuration.Observe(d.Seconds())
}
