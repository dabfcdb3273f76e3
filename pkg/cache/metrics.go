package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExplanationHits tracks explanation cache hits.
	ExplanationHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_explanation_cache_hits_total",
			Help: "Total number of explanation cache hits",
		},
	)

	// ExplanationMisses tracks explanation cache misses.
	ExplanationMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_explanation_cache_misses_total",
			Help: "Total number of explanation cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_explanation_cache_errors_total",
			Help: "Total number of explanation cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
