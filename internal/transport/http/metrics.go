package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the ingestion surface.
type Metrics struct {
	WorkbooksIngested prometheus.Counter
	IngestFailures    prometheus.Counter
	IngestBlocked     prometheus.Counter
	CacheHits         prometheus.Counter
	PipelineDuration  prometheus.Histogram
}

// NewMetrics registers the ingestion metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WorkbooksIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "wardpulse_workbooks_ingested_total",
			Help: "Workbooks successfully processed into a dataset.",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wardpulse_ingest_failures_total",
			Help: "Workbook uploads rejected by a structural or parsing error.",
		}),
		IngestBlocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "wardpulse_ingest_blocked_total",
			Help: "Processed datasets blocked from display by validation policy.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "wardpulse_ingest_cache_hits_total",
			Help: "Uploads answered from the content-hash dataset cache.",
		}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardpulse_pipeline_duration_seconds",
			Help:    "Wall time of one full ingestion pipeline pass.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
