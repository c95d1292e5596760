package currency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_rate_sync_runs_total",
			Help: "Total number of rate sync attempts by outcome",
		},
		[]string{"outcome"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exchange_rate_sync_duration_seconds",
			Help:    "Duration of rate sync runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ratesPersistedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exchange_rate_records_persisted_total",
			Help: "Total number of rate records written to the store",
		},
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_rate_resolutions_total",
			Help: "Total number of rate resolutions by answering source",
		},
		[]string{"source"},
	)
)

const (
	syncOutcomeSuccess = "success"
	syncOutcomeFailure = "failure"
	syncOutcomeSkipped = "skipped"

	resolutionSourceCache    = "cache"
	resolutionSourceStore    = "store"
	resolutionSourceProvider = "provider"
)
