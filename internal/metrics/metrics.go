package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImageRefreshRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_refresh_requests_total",
			Help: "Image URL refresh requests by outcome",
		},
		[]string{"outcome"},
	)

	ImageRefreshCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_refresh_cache_total",
			Help: "Refresh gateway result cache lookups",
		},
		[]string{"result"},
	)

	LoaderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_loader_transitions_total",
			Help: "Image loader phase transitions",
		},
		[]string{"phase"},
	)

	NotionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notion_request_duration_seconds",
			Help:    "Duration of content source API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
)

// Refresh outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeInvalid    = "invalid"
	OutcomeUpstream   = "upstream_error"
	CacheResultHit    = "hit"
	CacheResultMiss   = "miss"
	CacheResultShared = "shared"
)

func RecordRefresh(outcome string) {
	ImageRefreshRequests.WithLabelValues(outcome).Inc()
}

func RecordRefreshCache(result string) {
	ImageRefreshCache.WithLabelValues(result).Inc()
}

func RecordTransition(phase string) {
	LoaderTransitions.WithLabelValues(phase).Inc()
}

func ObserveNotionRequest(operation string, status string, started time.Time) {
	NotionRequestDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
