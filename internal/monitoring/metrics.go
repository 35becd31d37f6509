// Package monitoring exposes Prometheus instrumentation and webhook alerting
// for project snapshots.
package monitoring

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sells-group/opslens/internal/model"
)

const (
	namespace   = "opslens"
	maxLabelLen = 64
)

// sanitizeLabel keeps label values short and free of spaces.
func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}

// Metrics holds the collectors for aggregation, answering and alerting.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	adapterDuration *prometheus.HistogramVec
	adapterFailures *prometheus.CounterVec
	passDuration    prometheus.Histogram
	circuitState    *prometheus.GaugeVec
	answers         *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	snapshotCache   *prometheus.CounterVec
	alertsSent      *prometheus.CounterVec
}

// NewMetrics builds the collectors on a private registry that also carries
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "adapter_duration_seconds",
				Help:      "Adapter fetch duration by platform and status",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"platform", "status"},
		),
		adapterFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "adapter_failures_total",
				Help:      "Failed adapter results by platform and error kind",
			},
			[]string{"platform", "kind"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "pass_duration_seconds",
				Help:      "Duration of a full aggregation pass",
				Buckets:   prometheus.DefBuckets,
			},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "aggregate",
				Name:      "circuit_state",
				Help:      "Circuit breaker state per platform (0 closed, 1 open, 2 half-open)",
			},
			[]string{"platform"},
		),
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "qa",
				Name:      "answers_total",
				Help:      "Answers produced by intent and strategy",
			},
			[]string{"intent", "strategy"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "qa",
				Name:      "generative_fallbacks_total",
				Help:      "Generative answers replaced by the template strategy, by reason",
			},
			[]string{"reason"},
		),
		snapshotCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "snapshot_cache_total",
				Help:      "Snapshot cache lookups by result",
			},
			[]string{"result"},
		),
		alertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitoring",
				Name:      "alerts_sent_total",
				Help:      "Alerts delivered to the webhook by type",
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.adapterDuration,
		m.adapterFailures,
		m.passDuration,
		m.circuitState,
		m.answers,
		m.fallbacks,
		m.snapshotCache,
		m.alertsSent,
	)
	return m
}

// Registry returns the registry to serve on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult records one adapter outcome.
func (m *Metrics) ObserveResult(r model.ServiceResult) {
	if m == nil {
		return
	}
	platform := sanitizeLabel(string(r.Platform))
	m.adapterDuration.WithLabelValues(platform, string(r.Status)).Observe(r.Duration.Seconds())
	if r.Failure != nil {
		m.adapterFailures.WithLabelValues(platform, sanitizeLabel(string(r.Failure.Kind))).Inc()
	}
}

// ObservePass records the duration of an aggregation pass.
func (m *Metrics) ObservePass(d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(d.Seconds())
}

// SetCircuitState records a breaker transition for a platform.
func (m *Metrics) SetCircuitState(platform string, state int) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(sanitizeLabel(platform)).Set(float64(state))
}

// ObserveAnswer counts an answer.
func (m *Metrics) ObserveAnswer(intent model.IntentCategory, strategy model.AnswerStrategy) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(sanitizeLabel(string(intent)), sanitizeLabel(string(strategy))).Inc()
}

// ObserveFallback counts a generative answer that fell back to templates.
func (m *Metrics) ObserveFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(sanitizeLabel(reason)).Inc()
}

// ObserveCache counts a snapshot cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.snapshotCache.WithLabelValues(result).Inc()
}

// ObserveAlert counts a delivered alert.
func (m *Metrics) ObserveAlert(t AlertType) {
	if m == nil {
		return
	}
	m.alertsSent.WithLabelValues(sanitizeLabel(string(t))).Inc()
}
