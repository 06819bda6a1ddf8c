// Package monitoring exposes operational metrics and background health
// checks for the job layer.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus instruments for the job and pack
// pipelines. Register once per process; the /metrics endpoint serves the
// default registry.
type Collector struct {
	jobsStarted   *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobsFailed    *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec

	packsBuilt   prometheus.Counter
	packsFailed  prometheus.Counter
	packDuration prometheus.Histogram

	activeConnections prometheus.Gauge
	eventsSent        prometheus.Counter
}

// NewCollector creates and registers all instruments.
func NewCollector() *Collector {
	c := &Collector{
		jobsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obd2_jobs_started_total",
			Help: "Background jobs launched, by kind.",
		}, []string{"kind"}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obd2_jobs_completed_total",
			Help: "Background jobs finished successfully, by kind.",
		}, []string{"kind"}),
		jobsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obd2_jobs_failed_total",
			Help: "Background jobs that ended in failure, by kind.",
		}, []string{"kind"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "obd2_job_duration_seconds",
			Help:    "Wall-clock job duration from start to terminal state.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		packsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obd2_packs_built_total",
			Help: "Session packs built successfully.",
		}),
		packsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obd2_pack_build_failures_total",
			Help: "Session pack builds that failed.",
		}),
		packDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "obd2_pack_build_duration_seconds",
			Help:    "Time spent building one session pack.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "obd2_active_connections",
			Help: "WebSocket connections currently registered.",
		}),
		eventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "obd2_ws_events_sent_total",
			Help: "Events delivered to WebSocket clients.",
		}),
	}

	prometheus.MustRegister(
		c.jobsStarted,
		c.jobsCompleted,
		c.jobsFailed,
		c.jobDuration,
		c.packsBuilt,
		c.packsFailed,
		c.packDuration,
		c.activeConnections,
		c.eventsSent,
	)

	return c
}

// RecordJobStarted counts a job launch.
func (c *Collector) RecordJobStarted(kind string) {
	if c == nil {
		return
	}
	c.jobsStarted.WithLabelValues(kind).Inc()
}

// RecordJobCompleted counts a successful job and observes its duration.
func (c *Collector) RecordJobCompleted(kind string, seconds float64) {
	if c == nil {
		return
	}
	c.jobsCompleted.WithLabelValues(kind).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordJobFailed counts a failed job and observes its duration.
func (c *Collector) RecordJobFailed(kind string, seconds float64) {
	if c == nil {
		return
	}
	c.jobsFailed.WithLabelValues(kind).Inc()
	c.jobDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordPackBuilt counts a successful pack build.
func (c *Collector) RecordPackBuilt(seconds float64) {
	if c == nil {
		return
	}
	c.packsBuilt.Inc()
	c.packDuration.Observe(seconds)
}

// RecordPackFailed counts a failed pack build.
func (c *Collector) RecordPackFailed() {
	if c == nil {
		return
	}
	c.packsFailed.Inc()
}

// ConnectionOpened bumps the live connection gauge.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.activeConnections.Inc()
}

// ConnectionClosed drops the live connection gauge.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.activeConnections.Dec()
}

// RecordEventSent counts one delivered WebSocket event.
func (c *Collector) RecordEventSent() {
	if c == nil {
		return
	}
	c.eventsSent.Inc()
}
