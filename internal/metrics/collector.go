// Package metrics exposes Prometheus instrumentation for category access,
// print jobs and settings sync runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/warnain/backend/internal/printing"
)

const metricsNamespace = "warnain"

// Collector is a prometheus.Collector fed by the catalog, printing and
// settings services through their observer interfaces.
type Collector struct {
	categoryAccesses prometheus.Counter
	jobsSubmitted    *prometheus.CounterVec
	jobsFinished     *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	syncRuns         *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		categoryAccesses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "category_accesses_total",
				Help:      "The number of recorded category accesses.",
			},
		),
		jobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "print_jobs_submitted_total",
				Help:      "The number of print jobs handed to the dispatcher.",
			}, []string{"printer"},
		),
		jobsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "print_jobs_finished_total",
				Help:      "The number of print jobs that reached a final status.",
			}, []string{"status"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "print_dispatch_seconds",
				Help:      "The time spent handing a file to the print scheduler.",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "settings_sync_runs_total",
				Help:      "The number of printer and interface sync runs.",
			}, []string{"kind", "success"},
		),
	}
}

// CategoryAccessed counts one stored access.
func (c *Collector) CategoryAccessed(uint) {
	c.categoryAccesses.Inc()
}

// JobSubmitted counts a job handed to the dispatcher.
func (c *Collector) JobSubmitted(printer string) {
	c.jobsSubmitted.WithLabelValues(printer).Inc()
}

// JobFinished counts a finished job and observes how long dispatch took.
func (c *Collector) JobFinished(status printing.Status, elapsed time.Duration) {
	c.jobsFinished.WithLabelValues(string(status)).Inc()
	c.dispatchDuration.Observe(elapsed.Seconds())
}

// SyncCompleted counts a sync run.
func (c *Collector) SyncCompleted(kind string, ok bool) {
	c.syncRuns.WithLabelValues(kind, strconv.FormatBool(ok)).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.categoryAccesses.Describe(ch)
	c.jobsSubmitted.Describe(ch)
	c.jobsFinished.Describe(ch)
	c.dispatchDuration.Describe(ch)
	c.syncRuns.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.categoryAccesses.Collect(ch)
	c.jobsSubmitted.Collect(ch)
	c.jobsFinished.Collect(ch)
	c.dispatchDuration.Collect(ch)
	c.syncRuns.Collect(ch)
}
