// Package metrics provides opt-in Prometheus instrumentation for the
// benchmark driver. Counters are updated at chunk granularity so the
// per-operation hot path stays free of metric overhead, and every method
// is a no-op on a nil Collector.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the driver's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	opsTotal      *prometheus.CounterVec
	activeWorkers prometheus.Gauge
	phaseSeconds  *prometheus.GaugeVec
}

// NewCollector creates a Collector backed by its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kvbench_ops_total",
			Help: "Store operations executed, by operation kind",
		}, []string{"op"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kvbench_active_workers",
			Help: "Transaction workers that have not yet exhausted the cursor",
		}),
		phaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kvbench_phase_seconds",
			Help: "Wall-clock duration of completed benchmark phases",
		}, []string{"phase"}),
	}

	c.registry.MustRegister(c.opsTotal, c.activeWorkers, c.phaseSeconds)
	return c
}

// AddOps records operations executed since the last call, typically one
// chunk's worth.
func (c *Collector) AddOps(reads, upserts, rmws uint64) {
	if c == nil {
		return
	}
	if reads > 0 {
		c.opsTotal.WithLabelValues("read").Add(float64(reads))
	}
	if upserts > 0 {
		c.opsTotal.WithLabelValues("upsert").Add(float64(upserts))
	}
	if rmws > 0 {
		c.opsTotal.WithLabelValues("rmw").Add(float64(rmws))
	}
}

// SetActiveWorkers records how many transaction workers are still running.
func (c *Collector) SetActiveWorkers(n int64) {
	if c == nil {
		return
	}
	c.activeWorkers.Set(float64(n))
}

// ObservePhase records the wall-clock duration of a completed phase.
func (c *Collector) ObservePhase(phase string, d time.Duration) {
	if c == nil {
		return
	}
	c.phaseSeconds.WithLabelValues(phase).Set(d.Seconds())
}

// Handler returns an HTTP handler serving this collector's registry in
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
