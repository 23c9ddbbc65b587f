// Package metrics holds the Prometheus collectors for the extraction service.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	extractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoices",
			Subsystem: "extraction",
			Name:      "results_total",
			Help:      "Extractions by final scan status.",
		},
		[]string{"status"},
	)

	fieldsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoices",
			Subsystem: "extraction",
			Name:      "fields_found_total",
			Help:      "Fields that were present in an extraction result.",
		},
		[]string{"field"},
	)

	overallConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "invoices",
			Subsystem: "extraction",
			Name:      "overall_confidence",
			Help:      "Overall confidence of finished extractions.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invoices",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoices",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Extraction results served from the transcript cache.",
		},
	)

	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoices",
			Subsystem: "pipeline",
			Name:      "cache_misses_total",
			Help:      "Transcripts that had to be extracted.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invoices",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Jobs waiting for a worker.",
		},
	)

	ingestedFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoices",
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Files seen by the ingestor, by outcome.",
		},
		[]string{"outcome"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		extractionsTotal,
		fieldsFound,
		overallConfidence,
		stageDuration,
		cacheHits,
		cacheMisses,
		queueDepth,
		ingestedFiles,
	}
}

// Register adds every collector to reg. Registering twice on the same
// registry is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// RecordExtraction counts one finished scan.
func RecordExtraction(status string, overall float64) {
	extractionsTotal.WithLabelValues(status).Inc()
	if status != "failed" {
		overallConfidence.Observe(overall)
	}
}

// RecordFieldFound counts a field present in a result.
func RecordFieldFound(field string) {
	fieldsFound.WithLabelValues(field).Inc()
}

// RecordStageDuration observes how long a pipeline stage took.
func RecordStageDuration(stage string, seconds float64) {
	stageDuration.WithLabelValues(stage).Observe(seconds)
}

func RecordCacheHit()  { cacheHits.Inc() }
func RecordCacheMiss() { cacheMisses.Inc() }

// SetQueueDepth records the number of buffered jobs.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordIngest counts an ingested file by outcome ("queued", "dedup", "skipped", "error").
func RecordIngest(outcome string) {
	ingestedFiles.WithLabelValues(outcome).Inc()
}
