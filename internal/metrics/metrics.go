package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	cycleRuns        *prometheus.CounterVec // total reconciliation cycles
	cycleDuration    prometheus.Histogram   // time per cycle
	resolverRequests *prometheus.CounterVec // public IP lookups
	dnsRequests      *prometheus.CounterVec // dns provider requests
	targetOutcomes   *prometheus.CounterVec // per-target reconciliation outcomes
	targets          prometheus.Gauge       // configured targets
}

// Public interface for metrics operations
func (m *Metrics) IncCycleRun(success bool) {
	m.cycleRuns.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) SetCycleDuration(duration time.Duration) {
	m.cycleDuration.Observe(duration.Seconds())
}

func (m *Metrics) IncResolverRequest(success bool) {
	m.resolverRequests.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) IncDNSRequest(operation, zone string, success bool) {
	if !isValidOperation(operation) || zone == "" {
		return
	}
	m.dnsRequests.WithLabelValues(operation, zone, boolToResult(success)).Inc()
}

func (m *Metrics) IncTargetOutcome(record, outcome string) {
	if !isValidOutcome(outcome) || record == "" {
		return
	}
	m.targetOutcomes.WithLabelValues(record, outcome).Inc()
}

func (m *Metrics) SetTargets(count int) {
	m.targets.Set(float64(count))
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "find", "update":
		return true
	}
	return false
}

func isValidOutcome(outcome string) bool {
	switch outcome {
	case "unchanged", "updated", "failed":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "cloudflare_ddns"

	m := &Metrics{
		registry: registry,

		cycleRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_runs_total",
			Help:      "Total number of reconciliation cycles",
		}, []string{"status"}),

		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of reconciliation cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		resolverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_requests_total",
			Help:      "Total public IP resolution attempts",
		}, []string{"status"}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total DNS provider requests",
		}, []string{"operation", "zone", "status"}),

		targetOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "target_outcomes_total",
			Help:      "Per-target reconciliation outcomes",
		}, []string{"record", "outcome"}),

		targets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "targets_configured",
			Help:      "Number of configured record targets",
		}),
	}

	if register {
		registry.MustRegister(
			m.cycleRuns,
			m.cycleDuration,
			m.resolverRequests,
			m.dnsRequests,
			m.targetOutcomes,
			m.targets,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
