// Package metrics wires instance-scoped Prometheus collectors into the
// capture pipeline. Rather than registering counters as package-level
// promauto globals, Collector is constructed per run and injected
// explicitly into the components that report through it, so a run's
// metrics live exactly as long as the run struct that owns them and the
// core package carries no process-wide mutable state of its own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the handful of gauges/counters/histogram the capture
// pipeline reports, all registered against a Registry the caller owns.
type Collector struct {
	InFlight     prometheus.Gauge
	GateDecisions *prometheus.CounterVec
	AggregateBuildSeconds prometheus.Histogram
}

// New creates a Collector and registers its metrics against reg. Passing a
// fresh *prometheus.Registry per run (rather than prometheus.DefaultRegisterer)
// keeps back-to-back runs in one process from colliding on duplicate
// registration.
func New(reg *prometheus.Registry) *Collector {
	c := &Collector{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webcapture_inflight_captures",
			Help: "Number of response-capture tasks currently executing.",
		}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webcapture_gate_decisions_total",
			Help: "Count of ResponseClassifier gate outcomes by decision.",
		}, []string{"decision"}),
		AggregateBuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "webcapture_aggregate_build_seconds",
			Help:    "Wall-clock time spent building the run summary from the journal.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(c.InFlight, c.GateDecisions, c.AggregateBuildSeconds)
	}

	return c
}

// RecordGateDecision is a nil-safe convenience so call sites don't need to
// guard every call with "if metrics != nil".
func (c *Collector) RecordGateDecision(decision string) {
	if c == nil {
		return
	}
	c.GateDecisions.WithLabelValues(decision).Inc()
}

// SetInFlight is nil-safe, see RecordGateDecision.
func (c *Collector) SetInFlight(n int) {
	if c == nil {
		return
	}
	c.InFlight.Set(float64(n))
}

// ObserveAggregateBuild is nil-safe, see RecordGateDecision.
func (c *Collector) ObserveAggregateBuild(seconds float64) {
	if c == nil {
		return
	}
	c.AggregateBuildSeconds.Observe(seconds)
}
