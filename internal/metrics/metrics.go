// Package metrics holds the Prometheus collectors for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for the strategy pipeline.
//
// Metrics:
//   - stratagen_section_duration_seconds{section,outcome} - provider call latency
//   - stratagen_section_cost_total{section} - accumulated provider cost
//   - stratagen_runs_total{outcome} - completed runs by outcome
//   - stratagen_enrichment_timeouts_total{source} - optional data that missed the deadline
//   - stratagen_hook_violations_total{kind} - diversity violations found before remediation
//   - stratagen_breaker_state{name} - 0 closed, 1 open, 2 half-open
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SectionDuration    *prometheus.HistogramVec
	SectionCost        *prometheus.CounterVec
	RunsTotal          *prometheus.CounterVec
	EnrichmentTimeouts *prometheus.CounterVec
	HookViolations     *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		SectionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratagen_section_duration_seconds",
				Help:    "Duration of provider calls per pipeline section",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"section", "outcome"},
		),
		SectionCost: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratagen_section_cost_total",
				Help: "Accumulated provider cost per pipeline section",
			},
			[]string{"section"},
		),
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratagen_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"}, // "success", "failed", "cancelled"
		),
		EnrichmentTimeouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratagen_enrichment_timeouts_total",
				Help: "Optional enrichment sources that missed the grace deadline",
			},
			[]string{"source"},
		),
		HookViolations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratagen_hook_violations_total",
				Help: "Hook diversity violations detected before remediation",
			},
			[]string{"kind"},
		),
		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stratagen_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"name"},
		),
		gatherer: reg,
	}
}

// ObserveSection records one provider call.
func (m *Metrics) ObserveSection(section, outcome string, d time.Duration, cost float64) {
	if m == nil {
		return
	}
	m.SectionDuration.WithLabelValues(section, outcome).Observe(d.Seconds())
	if cost > 0 {
		m.SectionCost.WithLabelValues(section).Add(cost)
	}
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordEnrichmentTimeout counts an optional source left pending.
func (m *Metrics) RecordEnrichmentTimeout(source string) {
	if m == nil {
		return
	}
	m.EnrichmentTimeouts.WithLabelValues(source).Inc()
}

// RecordHookViolations adds n violations of kind.
func (m *Metrics) RecordHookViolations(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HookViolations.WithLabelValues(kind).Add(float64(n))
}

// SetBreakerState publishes a breaker's numeric state.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
