// Package observability exposes Prometheus metrics for the ingestion
// pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ListingsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_listings_fetched_total",
			Help: "Raw listings fetched, by source.",
		},
		[]string{"source"},
	)

	NormalizeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_normalize_failures_total",
			Help: "Raw records that failed normalization, by source.",
		},
		[]string{"source"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_source_failures_total",
			Help: "Source searches that failed outright, by source.",
		},
		[]string{"source"},
	)

	QualityIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_quality_issues_total",
			Help: "Validation issues raised, by severity.",
		},
		[]string{"severity"},
	)

	DuplicateClusters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_duplicate_clusters_total",
			Help: "Duplicate clusters collapsed during ingestion.",
		},
	)

	ListingsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_listings_saved_total",
			Help: "Listings upserted into the store.",
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Wall time of a full sync run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// Handler returns the /metrics handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
