// Package metrics exposes the fleet's Prometheus instrumentation:
// dispatch volume, completions, drops, and live kitchen count.
//
// HTTP endpoint: /metrics, scraped by Prometheus on demand. Disabled by
// default; enabled via --metrics-port.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns every metric the fleet records. A nil *Collector is
// valid and every method on it is a no-op, so callers can hold an
// always-present *Collector without a disabled-metrics branch at every
// call site.
type Collector struct {
	pizzasDispatched prometheus.Counter
	pizzasCompleted  prometheus.Counter
	pizzasDropped    prometheus.Counter
	kitchensActive   prometheus.Gauge
	kitchenForks     prometheus.Counter
	dispatchLatency  prometheus.Histogram
}

// NewCollector creates and registers a fresh Collector.
func NewCollector() *Collector {
	c := &Collector{
		pizzasDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plazza_pizzas_dispatched_total",
			Help: "Total pizzas successfully handed to a kitchen.",
		}),
		pizzasCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plazza_pizzas_completed_total",
			Help: "Total pizzas reported cooked by a kitchen.",
		}),
		pizzasDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plazza_pizzas_dropped_total",
			Help: "Total pizzas dropped at cook time for missing ingredients.",
		}),
		kitchensActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plazza_kitchens_active",
			Help: "Current number of live kitchen processes.",
		}),
		kitchenForks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plazza_kitchen_fork_total",
			Help: "Total kitchen processes forked over the process lifetime.",
		}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plazza_dispatch_latency_seconds",
			Help:    "Time from a distribute() call to a successful send.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(c.pizzasDispatched)
	prometheus.MustRegister(c.pizzasCompleted)
	prometheus.MustRegister(c.pizzasDropped)
	prometheus.MustRegister(c.kitchensActive)
	prometheus.MustRegister(c.kitchenForks)
	prometheus.MustRegister(c.dispatchLatency)

	return c
}

// RecordDispatch records a successful distribute() and its latency.
func (c *Collector) RecordDispatch(latency time.Duration) {
	if c == nil {
		return
	}
	c.pizzasDispatched.Inc()
	c.dispatchLatency.Observe(latency.Seconds())
}

// RecordCompleted records a COMPLETED: frame received from a kitchen.
func (c *Collector) RecordCompleted() {
	if c == nil {
		return
	}
	c.pizzasCompleted.Inc()
}

// RecordDropped records a job dropped at cook time for missing stock.
func (c *Collector) RecordDropped() {
	if c == nil {
		return
	}
	c.pizzasDropped.Inc()
}

// RecordFork records a kitchen process being spawned.
func (c *Collector) RecordFork() {
	if c == nil {
		return
	}
	c.kitchenForks.Inc()
}

// SetKitchensActive sets the current live-kitchen gauge.
func (c *Collector) SetKitchensActive(n int) {
	if c == nil {
		return
	}
	c.kitchensActive.Set(float64(n))
}

// StartServer serves /metrics on port in a background goroutine.
func StartServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return nil
}
