// Package metrics exposes Prometheus collectors for the harvester service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors observed by the pipeline stages.
type Metrics struct {
	PagesScanned   prometheus.Counter
	RecordsNew     prometheus.Counter
	DetailFailures prometheus.Counter
	EnrichOK       prometheus.Counter
	EnrichFailures prometheus.Counter
	RecordsSynced  prometheus.Counter
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New registers all collectors on the given registerer and returns them.
// Passing a fresh prometheus.NewRegistry keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PagesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_pages_scanned_total",
			Help: "Listing pages fetched and parsed during scans.",
		}),
		RecordsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_new_total",
			Help: "Newly staged records across all runs.",
		}),
		DetailFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_detail_failures_total",
			Help: "Detail-page fetches that exhausted retries.",
		}),
		EnrichOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_enrich_ok_total",
			Help: "Records successfully normalized by the LLM capability.",
		}),
		EnrichFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_enrich_failures_total",
			Help: "Records forwarded unnormalized after a capability failure.",
		}),
		RecordsSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_records_synced_total",
			Help: "Rows newly inserted into the store.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_runs_total",
			Help: "Completed pull runs, labeled by terminal status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_duration_seconds",
			Help:    "Wall-clock duration of full pull runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_http_requests_total",
			Help: "HTTP requests served, labeled by method, route, and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.PagesScanned,
		m.RecordsNew,
		m.DetailFailures,
		m.EnrichOK,
		m.EnrichFailures,
		m.RecordsSynced,
		m.RunsTotal,
		m.RunDuration,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// NewNop returns metrics backed by an unexported registry, for tests and
// callers that do not scrape.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
