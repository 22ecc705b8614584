// Package metrics collects per-run pipeline counters on a private registry.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one pipeline run.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RulesParsed        prometheus.Counter
	RuleParseFailures  prometheus.Counter
	AlertsNormalized   prometheus.Counter
	AlertsMatched      prometheus.Counter
	Groups             prometheus.Counter
	ExtractionAttempts *prometheus.CounterVec
	ExtractionFailures *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RulesParsed: f.NewCounter(prometheus.CounterOpts{
			Name: "alertlens_rules_parsed_total",
			Help: "Total number of rule files parsed successfully",
		}),
		RuleParseFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "alertlens_rule_parse_failures_total",
			Help: "Total number of rule files that failed to parse",
		}),
		AlertsNormalized: f.NewCounter(prometheus.CounterOpts{
			Name: "alertlens_alerts_normalized_total",
			Help: "Total number of alerts normalized",
		}),
		AlertsMatched: f.NewCounter(prometheus.CounterOpts{
			Name: "alertlens_alerts_matched_total",
			Help: "Total number of alerts matched against the rule index",
		}),
		Groups: f.NewCounter(prometheus.CounterOpts{
			Name: "alertlens_groups_total",
			Help: "Total number of alert groups formed",
		}),
		ExtractionAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alertlens_extraction_attempts_total",
			Help: "Language model extraction attempts by kind",
		}, []string{"kind"}),
		ExtractionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alertlens_extraction_failures_total",
			Help: "Failed language model extraction attempts by kind",
		}, []string{"kind"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alertlens_stage_duration_seconds",
			Help:    "Wall time per pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Add increments c by n.
func (m *Metrics) Add(c prometheus.Counter, n int) {
	if m == nil || c == nil || n <= 0 {
		return
	}
	c.Add(float64(n))
}

// ObserveAttempt records one extraction attempt of kind and whether it failed.
func (m *Metrics) ObserveAttempt(kind string, err error) {
	if m == nil {
		return
	}
	m.ExtractionAttempts.WithLabelValues(kind).Inc()
	if err != nil {
		m.ExtractionFailures.WithLabelValues(kind).Inc()
	}
}

// ObserveStage records how long stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
