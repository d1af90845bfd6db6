// Package metrics provides Prometheus metrics for the card price service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardprice_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Provider Metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_provider_requests_total",
			Help: "Outbound provider requests by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "ok", "not_found", "rate_limited", "error"
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardprice_provider_latency_seconds",
			Help:    "Outbound provider call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	ProviderRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_provider_rate_limited_total",
			Help: "Times a provider answered 429 or the local budget rejected a call",
		},
		[]string{"provider", "origin"}, // origin: "remote" or "local"
	)

	// Engine Metrics
	PriceResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_resolutions_total",
			Help: "Price resolutions by the source that produced the result",
		},
		[]string{"source", "found"},
	)

	EnginePanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardprice_engine_panics_total",
			Help: "Unexpected panics recovered by the price engine",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_cache_hits_total",
			Help: "Result cache hit count",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_cache_misses_total",
			Help: "Result cache miss count",
		},
		[]string{"namespace"},
	)

	CacheSkippedWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardprice_cache_skipped_writes_total",
			Help: "Results not cached because they carried no usable price",
		},
		[]string{"namespace"},
	)

	CacheSweptEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardprice_cache_swept_entries_total",
			Help: "Expired cache entries removed by the sweep job",
		},
	)

	// Set Catalog Metrics
	SetCatalogSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardprice_set_catalog_size",
			Help: "Number of sets cached per provider and language",
		},
		[]string{"provider", "language"},
	)
)
