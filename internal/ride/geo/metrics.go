package geo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	regionQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "region_queries_total",
		Help: "Total region queries grouped by outcome.",
	}, []string{"result"})

	regionQuerySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "region_query_seconds",
		Help:    "Time spent filtering rides for a bounding region.",
		Buckets: prometheus.DefBuckets,
	})
)
