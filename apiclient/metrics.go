package apiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Refresh outcomes recorded in TokenRefreshesTotal.
const (
	RefreshSuccess        = "success"
	RefreshFailure        = "failure"
	RefreshNoRefreshToken = "no_refresh_token"
	RefreshReused         = "reused"
	RefreshDiscarded      = "discarded"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxappeal",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "HTTP requests sent to the API by method and status code.",
		},
		[]string{"method", "status"},
	)

	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taxappeal",
			Subsystem: "client",
			Name:      "token_refreshes_total",
			Help:      "Refresh attempts after a 401 by outcome.",
		},
		[]string{"outcome"},
	)

	ForcedLogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taxappeal",
			Subsystem: "client",
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because they could not be refreshed.",
		},
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "taxappeal",
			Subsystem: "client",
			Name:      "refresh_duration_seconds",
			Help:      "Latency of the refresh-token exchange.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
