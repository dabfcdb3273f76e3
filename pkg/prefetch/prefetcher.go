package prefetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/quizforge/quiz-client/pkg/api"
	"github.com/quizforge/quiz-client/pkg/queue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Low-water mark and top-up batch size for background refills.
const (
	// LowWaterMark is the buffer size below which a top-up is triggered.
	LowWaterMark = 4

	// TopUpSize is the batch size requested by a background top-up.
	TopUpSize = 6
)

// Source is the slice of the API client the prefetcher needs.
type Source interface {
	GetBundle(ctx context.Context, filter api.Filter, size int) ([]api.Question, error)
	GetQuestion(ctx context.Context, filter api.Filter) (api.Question, error)
}

// ProgressFunc receives pre-load progress as a percentage in [0,100].
type ProgressFunc func(pct float64)

// Prefetcher fills the buffer from the indexed API. A bundle call is tried
// first; when it fails wholesale the prefetcher falls back to individual
// question fetches through the shared concurrency queue, keeping whatever
// succeeds.
type Prefetcher struct {
	source   Source
	queue    *queue.Queue
	buffer   *Buffer
	progress ProgressFunc
	logger   zerolog.Logger
}

// NewPrefetcher creates a prefetcher. progress may be nil.
func NewPrefetcher(source Source, q *queue.Queue, buffer *Buffer, progress ProgressFunc) *Prefetcher {
	if progress == nil {
		progress = func(float64) {}
	}
	return &Prefetcher{
		source:   source,
		queue:    q,
		buffer:   buffer,
		progress: progress,
		logger:   log.With().Str("component", "prefetch").Logger(),
	}
}

// BulkFill requests up to size questions and appends them to the buffer
// tail. Returns how many questions were added. A failed bundle call falls
// back to individual fetches whose failures are swallowed, so the only
// error returned is context cancellation.
func (p *Prefetcher) BulkFill(ctx context.Context, filter api.Filter, size int) (int, error) {
	if size <= 0 {
		return 0, nil
	}

	questions, err := queue.Run(ctx, p.queue, func() ([]api.Question, error) {
		return p.source.GetBundle(ctx, filter, size)
	})
	if err == nil {
		p.buffer.Append(questions...)
		p.progress(100)
		p.logger.Debug().
			Int("requested", size).
			Int("received", len(questions)).
			Msg("Bundle fill complete")
		return len(questions), nil
	}

	p.logger.Warn().Err(err).
		Int("size", size).
		Msg("Bundle fetch failed - falling back to individual fetches")

	return p.fillIndividually(ctx, filter, size)
}

// fillIndividually issues size independent question fetches through the
// queue, appending each success as it lands. Individual failures only
// reduce the final count.
func (p *Prefetcher) fillIndividually(ctx context.Context, filter api.Filter, size int) (int, error) {
	var added, settled int64
	var wg sync.WaitGroup

	for i := 0; i < size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			q, err := queue.Run(ctx, p.queue, func() (api.Question, error) {
				return p.source.GetQuestion(ctx, filter)
			})
			if err == nil {
				p.buffer.Append(q)
				atomic.AddInt64(&added, 1)
			} else if !errors.Is(err, context.Canceled) {
				p.logger.Debug().Err(err).Msg("Individual fill fetch failed")
			}

			done := atomic.AddInt64(&settled, 1)
			p.progress(float64(done) / float64(size) * 100)
		}()
	}
	wg.Wait()

	count := int(atomic.LoadInt64(&added))
	p.logger.Info().
		Int("requested", size).
		Int("added", count).
		Msg("Individual fill complete")

	return count, ctx.Err()
}

// TopUp is the fire-and-forget variant of BulkFill used when the buffer
// runs low. Failures are logged and never reach the caller path that
// triggered the top-up.
func (p *Prefetcher) TopUp(filter api.Filter, size int) {
	go func() {
		added, err := p.BulkFill(context.Background(), filter, size)
		if err != nil {
			p.logger.Warn().Err(err).Msg("Background top-up failed")
			return
		}
		p.logger.Debug().
			Int("added", added).
			Int("buffered", p.buffer.Len()).
			Msg("Background top-up complete")
	}()
}
