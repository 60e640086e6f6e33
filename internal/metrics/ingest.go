package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingest Prometheus metrics.
var (
	IngestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecdesk",
			Name:      "ingest_records_total",
			Help:      "Records processed by ingestion, by mode and outcome",
		},
		[]string{"mode", "status"}, // mode: "one"/"bulk", status: "stored"/"failed"
	)

	IngestBulkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecdesk",
			Name:      "ingest_bulk_duration_seconds",
			Help:      "Duration of bulk ingestion jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	IngestBulkSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecdesk",
			Name:      "ingest_bulk_size",
			Help:      "Number of records per bulk ingestion job",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
	)
)

var ingestMetricsRegistered bool

// RegisterIngestMetrics registers Prometheus ingest metrics. Must be called once from main.
func RegisterIngestMetrics() {
	if ingestMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestRecordsTotal)
	prometheus.MustRegister(IngestBulkDuration)
	prometheus.MustRegister(IngestBulkSize)
	ingestMetricsRegistered = true
}
