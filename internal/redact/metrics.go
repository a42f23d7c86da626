package redact

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	secretsRedacted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "corpusd",
		Subsystem: "redact",
		Name:      "secrets_total",
		Help:      "Secrets replaced with redaction markers, by rule.",
	}, []string{"rule"})

	redactDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "corpusd",
		Subsystem: "redact",
		Name:      "duration_seconds",
		Help:      "Time spent scanning and redacting one content unit.",
		Buckets:   prometheus.DefBuckets,
	})
)
