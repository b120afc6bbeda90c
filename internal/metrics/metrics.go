// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "repohealth"

// Metrics holds the Prometheus collectors instrumenting the acquisition
// pipeline and the paged fetcher.
type Metrics struct {
	PagesFetched   prometheus.Counter
	PageRetries    prometheus.Counter
	PagesDropped   prometheus.Counter
	RecordsDropped prometheus.Counter
	PipelineRuns   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests for isolation.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Paginated API pages fetched successfully.",
		}),
		PageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_retries_total",
			Help:      "Paginated API page fetches retried after an error response.",
		}),
		PagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_dropped_total",
			Help:      "Pages abandoned after exhausting the fetch error budget.",
		}),
		RecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Non-mapping elements discarded from paginated responses.",
		}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.PagesFetched,
		m.PageRetries,
		m.PagesDropped,
		m.RecordsDropped,
		m.PipelineRuns,
		m.StageDuration,
	)
	return m
}
