// Package prefetch implements the look-ahead question buffer: a FIFO store
// of pre-fetched questions with bulk fill and background top-up.
package prefetch

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quizforge/quiz-client/pkg/api"
	"github.com/quizforge/quiz-client/pkg/perf"
)

var quizBufferSize = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "quiz_prefetch_buffer_size",
	Help: "Questions currently held in the prefetch buffer",
})

// Buffer is an ordered store of pre-fetched questions, consumed FIFO.
// Insertion order equals consumption order; duplicates are accepted.
type Buffer struct {
	mu      sync.Mutex
	items   []api.Question
	monitor *perf.Monitor
}

// NewBuffer creates an empty buffer. Every TryConsume is recorded in the
// monitor as a cache check.
func NewBuffer(monitor *perf.Monitor) *Buffer {
	if monitor == nil {
		monitor = perf.NewMonitor()
	}
	return &Buffer{monitor: monitor}
}

// TryConsume pops the oldest question if present. Non-blocking; records a
// cache check always and a hit only when a question was returned.
func (b *Buffer) TryConsume() (api.Question, bool) {
	b.mu.Lock()
	if len(b.items) == 0 {
		b.mu.Unlock()
		b.monitor.RecordCacheCheck(false)
		return api.Question{}, false
	}

	q := b.items[0]
	b.items = b.items[1:]
	b.mu.Unlock()

	quizBufferSize.Dec()
	b.monitor.RecordCacheCheck(true)
	return q, true
}

// Append adds questions to the buffer tail. Each call is atomic; no
// merging or de-duplication happens.
func (b *Buffer) Append(items ...api.Question) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	b.items = append(b.items, items...)
	b.mu.Unlock()

	quizBufferSize.Add(float64(len(items)))
}

// Len returns the number of buffered questions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Reset clears the buffer. Called at the start of every full pre-load.
func (b *Buffer) Reset() {
	b.mu.Lock()
	n := len(b.items)
	b.items = nil
	b.mu.Unlock()

	quizBufferSize.Sub(float64(n))
}
