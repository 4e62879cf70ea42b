// Package metrics holds the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recognitions counts recognition attempts by outcome:
	// matched, no_match, error.
	Recognitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "faceattend_recognitions_total",
		Help: "Recognition attempts by outcome.",
	}, []string{"outcome"})

	// CheckIns counts recorded check-ins, including same-day refreshes.
	CheckIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_checkins_total",
		Help: "Recorded check-ins.",
	})

	// CheckOuts counts completed check-outs. No-op check-outs are not counted.
	CheckOuts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "faceattend_checkouts_total",
		Help: "Completed check-outs.",
	})

	// MatchDistance observes the best distance of each matcher run.
	MatchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "faceattend_match_distance",
		Help:    "Best Euclidean distance per recognition.",
		Buckets: prometheus.LinearBuckets(0.05, 0.05, 20),
	})
)
