package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "agent",
			Name:      "chats_total",
			Help:      "Chat conversations, by result",
		},
		[]string{"result"},
	)

	chatDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "corpusd",
			Subsystem: "agent",
			Name:      "chat_duration_seconds",
			Help:      "Wall time of completed chat conversations",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	toolSearches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "corpusd",
			Subsystem: "agent",
			Name:      "tool_searches_total",
			Help:      "search_documents tool executions",
		},
	)
)
