package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "retrieval",
			Name:      "searches_total",
			Help:      "Similarity searches, by result",
		},
		[]string{"result"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corpusd",
			Subsystem: "retrieval",
			Name:      "search_duration_seconds",
			Help:      "End-to-end duration of successful searches",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
