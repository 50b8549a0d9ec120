// Package metrics exposes Prometheus counters, gauges, and histograms for
// the worker loop, the indexing pipeline, and the watchdog layer.
//
// Categories, following RED (rate, errors, duration) for the job
// lifecycle and USE (utilization, saturation, errors) for the storage
// watchdog:
//
//   - jobs_picked_total / jobs_completed_total / jobs_failed_total /
//     jobs_infra_held_total: job lifecycle counters
//   - job_crawl_duration_seconds / job_index_duration_seconds: latency
//     histograms for SLA tracking
//   - snapshots_indexed_total / snapshots_deduplicated_total: indexing
//     throughput counters
//   - jobs_queued: current backlog gauge
//   - watchdog_actions_total{loop,action}: recovery actions taken, by
//     which loop and what it did
//   - circuit_breaker_state{name}: 0=closed, 1=open, 2=half-open
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Collector holds every metric the archive pipeline emits, registered
// against its own registry so tests can construct a fresh Collector
// without colliding with the global default registerer.
type Collector struct {
	registry *prometheus.Registry

	jobsPicked     prometheus.Counter
	jobsCompleted  prometheus.Counter
	jobsFailed     prometheus.Counter
	jobsInfraHeld  prometheus.Counter
	jobsQueued     prometheus.Gauge

	crawlDuration prometheus.Histogram
	indexDuration prometheus.Histogram

	snapshotsIndexed       prometheus.Counter
	snapshotsDeduplicated  prometheus.Counter

	watchdogActions *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

// NewCollector builds and registers every metric.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		jobsPicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healtharchive_jobs_picked_total",
			Help: "Total number of jobs picked up by the worker loop.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healtharchive_jobs_completed_total",
			Help: "Total number of jobs that reached the Indexed state.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healtharchive_jobs_failed_total",
			Help: "Total number of jobs that reached the Failed state.",
		}),
		jobsInfraHeld: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healtharchive_jobs_infra_held_total",
			Help: "Total number of jobs classified as infra failures and put on cooldown.",
		}),
		jobsQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healtharchive_jobs_queued",
			Help: "Current number of jobs in the Queued state.",
		}),
		crawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healtharchive_job_crawl_duration_seconds",
			Help:    "Wall-clock duration of the crawler subprocess per job.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),
		indexDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healtharchive_job_index_duration_seconds",
			Help:    "Wall-clock duration of the indexing pipeline per job.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		snapshotsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healtharchive_snapshots_indexed_total",
			Help: "Total number of snapshot rows inserted.",
		}),
		snapshotsDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "healtharchive_snapshots_deduplicated_total",
			Help: "Total number of snapshot rows marked as duplicates.",
		}),
		watchdogActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healtharchive_watchdog_actions_total",
			Help: "Recovery actions taken by each watchdog loop.",
		}, []string{"loop", "action"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "healtharchive_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
		}, []string{"name"}),
	}

	registry.MustRegister(
		c.jobsPicked,
		c.jobsCompleted,
		c.jobsFailed,
		c.jobsInfraHeld,
		c.jobsQueued,
		c.crawlDuration,
		c.indexDuration,
		c.snapshotsIndexed,
		c.snapshotsDeduplicated,
		c.watchdogActions,
		c.breakerState,
	)

	return c
}

// Handler returns the HTTP handler to mount at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordJobPicked()    { c.jobsPicked.Inc() }
func (c *Collector) RecordJobCompleted() { c.jobsCompleted.Inc() }
func (c *Collector) RecordJobFailed()    { c.jobsFailed.Inc() }
func (c *Collector) RecordJobInfraHeld() { c.jobsInfraHeld.Inc() }

func (c *Collector) SetJobsQueued(n int) { c.jobsQueued.Set(float64(n)) }

func (c *Collector) ObserveCrawlDuration(seconds float64) { c.crawlDuration.Observe(seconds) }
func (c *Collector) ObserveIndexDuration(seconds float64) { c.indexDuration.Observe(seconds) }

func (c *Collector) RecordSnapshotsIndexed(n int)      { c.snapshotsIndexed.Add(float64(n)) }
func (c *Collector) RecordSnapshotsDeduplicated(n int) { c.snapshotsDeduplicated.Add(float64(n)) }

// RecordWatchdogAction increments the counter for loop ("stall",
// "storage", "reconciler") taking action ("job_marked_stalled",
// "remount_attempted", ...).
func (c *Collector) RecordWatchdogAction(loop, action string) {
	c.watchdogActions.WithLabelValues(loop, action).Inc()
}

// SetBreakerState reports a named circuit breaker's current state.
func (c *Collector) SetBreakerState(name string, state int) {
	c.breakerState.WithLabelValues(name).Set(float64(state))
}
