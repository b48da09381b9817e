// Package metrics holds the Prometheus collectors for the aggregation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedmix_feed_fetches_total",
		Help: "Feed fetches by source type and outcome",
	}, []string{"source_type", "outcome"})

	FeedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedmix_feed_fetch_duration_seconds",
		Help:    "Duration of a single feed fetch including parsing",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"source_type"})

	BranchDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedmix_aggregation_branch_degraded_total",
		Help: "Aggregation branches that contributed nothing, by branch kind and reason",
	}, []string{"branch", "reason"})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedmix_aggregation_duration_seconds",
		Help:    "Duration of building one personal feed",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 11),
	})

	AggregatedPosts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedmix_aggregated_posts",
		Help:    "Number of posts in an aggregated feed",
		Buckets: prometheus.LinearBuckets(0, 10, 10),
	})

	NormalizeWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedmix_normalize_warnings_total",
		Help: "Non-fatal normalization problems by kind",
	}, []string{"kind"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedmix_cache_hits_total",
		Help: "Cache hits by value kind",
	}, []string{"kind"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedmix_cache_misses_total",
		Help: "Cache misses by value kind",
	}, []string{"kind"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
