package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "corpusd",
			Subsystem: "indexer",
			Name:      "queue_depth",
			Help:      "Number of work items waiting in the indexing queue",
		},
	)

	filesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "indexer",
			Name:      "files_processed_total",
			Help:      "Files handled by the consumer, by outcome",
		},
		[]string{"outcome"},
	)

	chunksIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "indexer",
			Name:      "chunks_indexed_total",
			Help:      "Document chunks written to the vector store",
		},
	)

	pathsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "indexer",
			Name:      "paths_purged_total",
			Help:      "Deleted files removed from the catalog and vector store",
		},
	)

	indexingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corpusd",
			Subsystem: "indexer",
			Name:      "indexing_duration_seconds",
			Help:      "Wall time from loading a file to upserting its chunks",
			Buckets:   prometheus.DefBuckets,
		},
	)

	crawlDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corpusd",
			Subsystem: "indexer",
			Name:      "crawl_duration_seconds",
			Help:      "Duration of full watch root crawl passes",
			Buckets:   []float64{.1, .5, 1, 5, 15, 60, 300, 900},
		},
	)
)

// Outcome labels for filesProcessed.
const (
	outcomeIndexed   = "indexed"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)
