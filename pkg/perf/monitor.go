// Package perf tracks full-session performance aggregates for the quiz
// client: average fetch latency and prefetch-buffer hit rate.
package perf

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for session performance tracking.
var (
	quizFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quiz_fetch_duration_seconds",
		Help:    "Duration of successful question fetches",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	quizBufferChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_buffer_checks_total",
		Help: "Prefetch buffer lookups by outcome",
	}, []string{"outcome"}) // "hit", "miss"
)

// Monitor accumulates fetch latency and buffer hit statistics for the
// lifetime of a session. Counters are monotonically non-decreasing; there
// is no windowing and no reset.
type Monitor struct {
	mu            sync.Mutex
	totalRequests int64
	totalTime     time.Duration
	cacheHits     int64
	cacheChecks   int64
}

// Snapshot is a point-in-time copy of the monitor counters.
type Snapshot struct {
	TotalRequests int64
	TotalTime     time.Duration
	CacheHits     int64
	CacheChecks   int64
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// RecordFetch adds one successful fetch sample. Elapsed covers request
// start through decoded response body.
func (m *Monitor) RecordFetch(elapsed time.Duration) {
	m.mu.Lock()
	m.totalRequests++
	m.totalTime += elapsed
	m.mu.Unlock()

	quizFetchDuration.Observe(elapsed.Seconds())
}

// RecordCacheCheck adds one buffer lookup. Every lookup counts as a check;
// only successful consumption counts as a hit.
func (m *Monitor) RecordCacheCheck(hit bool) {
	m.mu.Lock()
	m.cacheChecks++
	if hit {
		m.cacheHits++
	}
	m.mu.Unlock()

	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	quizBufferChecksTotal.WithLabelValues(outcome).Inc()
}

// AverageLatency returns the mean fetch duration, or 0 before any fetch.
func (m *Monitor) AverageLatency() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.totalRequests == 0 {
		return 0
	}
	return m.totalTime / time.Duration(m.totalRequests)
}

// HitRate returns the buffer hit ratio in [0,1], or 0 before any check.
func (m *Monitor) HitRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cacheChecks == 0 {
		return 0
	}
	return float64(m.cacheHits) / float64(m.cacheChecks)
}

// Snapshot returns a copy of the raw counters.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		TotalRequests: m.totalRequests,
		TotalTime:     m.totalTime,
		CacheHits:     m.cacheHits,
		CacheChecks:   m.cacheChecks,
	}
}
