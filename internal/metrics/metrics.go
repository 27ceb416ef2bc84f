// Package metrics exposes pipeline latency and outcome counters in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages.
const (
	StageTranscribe = "transcribe"
	StageComplete   = "completion"
	StageSynthesize = "synthesis"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry
	stage    *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// New creates collectors registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autoconnect",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each external call in the chat pipeline.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"stage", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autoconnect",
			Name:      "requests_total",
			Help:      "Chat pipeline requests by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.stage, m.outcomes)
	return m
}

// ObserveStage records how long a stage took and whether it succeeded.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stage.WithLabelValues(stage, status).Observe(d.Seconds())
}

// CountOutcome increments the request counter for outcome
// (e.g. "ok", "text_only", "invalid_audio", "completion_failed").
func (m *Metrics) CountOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
