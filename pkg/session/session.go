// Package session implements the quiz navigation sequencer: a linear
// history of consumed questions with a movable cursor, fed from the
// prefetch buffer and falling back to guarded foreground fetches.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quiz-client/pkg/api"
	"github.com/quizforge/quiz-client/pkg/cache"
	"github.com/quizforge/quiz-client/pkg/perf"
	"github.com/quizforge/quiz-client/pkg/prefetch"
	"github.com/quizforge/quiz-client/pkg/queue"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for session behavior.
const (
	// DefaultPreloadSize is the bundle size requested by a full pre-load.
	DefaultPreloadSize = 10

	// DefaultLoadingCeiling caps how long the loading indicator stays
	// visible during a foreground fetch.
	DefaultLoadingCeiling = 200 * time.Millisecond

	// noticeTruncateLen bounds explanation text surfaced through notices.
	noticeTruncateLen = 200
)

// ErrNoCurrentQuestion is returned by Explain when the history is empty.
var ErrNoCurrentQuestion = errors.New("no current question")

// Notifier is the UI collaborator. The session pushes rendering, loading
// state, transient notices and performance figures through it; it never
// reads anything back.
type Notifier interface {
	// Render displays a question.
	Render(q api.Question)

	// SetLoading toggles the loading indicator.
	SetLoading(visible bool)

	// SetRetryBanner toggles the soft "retrying" banner.
	SetRetryBanner(visible bool)

	// Notice shows a transient message.
	Notice(message string)

	// PreloadProgress reports pre-load progress as a percentage in [0,100].
	PreloadProgress(pct float64)

	// PerformanceUpdate reports the running average fetch latency and
	// buffer hit rate percentage.
	PerformanceUpdate(avgMs float64, hitRatePct float64)
}

// FilterFunc supplies the current filter selection. It is called fresh for
// every fetch, never cached across calls.
type FilterFunc func() api.Filter

// Source is the slice of the API client the session needs.
type Source interface {
	prefetch.Source
	GetExplanation(ctx context.Context, qid string) (string, error)
}

// Config holds session configuration.
type Config struct {
	// Source fetches questions and explanations (REQUIRED).
	Source Source

	// Notifier receives UI updates (REQUIRED).
	Notifier Notifier

	// Filter supplies the current filter selection. Optional; defaults to
	// an empty filter.
	Filter FilterFunc

	// Queue is the shared concurrency gate. Optional; a default queue is
	// created when nil. Pass the queue the API client shares when several
	// components must compete fairly.
	Queue *queue.Queue

	// Monitor aggregates performance figures. Optional.
	Monitor *perf.Monitor

	// Explanations is an optional cross-session explanation cache.
	Explanations *cache.Explanations

	// PreloadSize overrides DefaultPreloadSize.
	PreloadSize int

	// LoadingCeiling overrides DefaultLoadingCeiling.
	LoadingCeiling time.Duration
}

// Session owns the navigation state for one user session: the prefetch
// buffer, the append-only history and its cursor, and the performance
// monitor. Sessions are independent; no process-wide state is shared
// beyond prometheus counters.
type Session struct {
	id       uuid.UUID
	source   Source
	notifier Notifier
	filter   FilterFunc
	queue    *queue.Queue
	monitor  *perf.Monitor
	expl     *cache.Explanations

	buffer *prefetch.Buffer
	pre    *prefetch.Prefetcher

	preloadSize    int
	loadingCeiling time.Duration

	mu      sync.Mutex
	history []api.Question
	cursor  int

	logger zerolog.Logger
}

// New creates a session.
func New(cfg Config) (*Session, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Filter == nil {
		cfg.Filter = func() api.Filter { return api.Filter{} }
	}
	if cfg.Queue == nil {
		cfg.Queue = queue.New(queue.DefaultLimit)
	}
	if cfg.Monitor == nil {
		cfg.Monitor = perf.NewMonitor()
	}
	if cfg.PreloadSize <= 0 {
		cfg.PreloadSize = DefaultPreloadSize
	}
	if cfg.LoadingCeiling <= 0 {
		cfg.LoadingCeiling = DefaultLoadingCeiling
	}

	id := uuid.New()
	buffer := prefetch.NewBuffer(cfg.Monitor)
	pre := prefetch.NewPrefetcher(cfg.Source, cfg.Queue, buffer, cfg.Notifier.PreloadProgress)

	return &Session{
		id:             id,
		source:         cfg.Source,
		notifier:       cfg.Notifier,
		filter:         cfg.Filter,
		queue:          cfg.Queue,
		monitor:        cfg.Monitor,
		expl:           cfg.Explanations,
		buffer:         buffer,
		pre:            pre,
		preloadSize:    cfg.PreloadSize,
		loadingCeiling: cfg.LoadingCeiling,
		cursor:         -1,
		logger: log.With().
			Str("component", "session").
			Str("session_id", id.String()).
			Logger(),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Buffer exposes the prefetch buffer (for callers inspecting fill state).
func (s *Session) Buffer() *prefetch.Buffer {
	return s.buffer
}

// Monitor exposes the performance monitor.
func (s *Session) Monitor() *perf.Monitor {
	return s.monitor
}

// Preload resets the buffer and fills it with up to size questions
// (the configured preload size when size <= 0). Returns how many questions
// were buffered.
func (s *Session) Preload(ctx context.Context, size int) (int, error) {
	if size <= 0 {
		size = s.preloadSize
	}

	s.buffer.Reset()
	s.notifier.PreloadProgress(0)

	added, err := s.pre.BulkFill(ctx, s.filter(), size)
	s.publishPerformance()

	s.logger.Info().
		Int("requested", size).
		Int("added", added).
		Msg("Pre-load complete")

	return added, err
}

// Advance moves to the next question: from the buffer when possible,
// otherwise through a guarded foreground fetch. The rendered question is
// returned. On fetch failure the history is left untouched, the current
// entry is re-rendered, a notice is sent, and the error is returned for
// callers that care.
func (s *Session) Advance(ctx context.Context) (api.Question, error) {
	if q, ok := s.buffer.TryConsume(); ok {
		s.appendAndRender(q)

		// Consuming from the buffer may leave it low; refill in the
		// background without holding up this advance.
		if s.buffer.Len() < prefetch.LowWaterMark {
			s.pre.TopUp(s.filter(), prefetch.TopUpSize)
		}
		s.publishPerformance()
		return q, nil
	}

	return s.advanceFetch(ctx)
}

// advanceFetch performs the buffer-miss path: a single indexed fetch with
// the loading indicator capped at the optimistic ceiling.
func (s *Session) advanceFetch(ctx context.Context) (api.Question, error) {
	s.notifier.SetLoading(true)
	ceiling := time.AfterFunc(s.loadingCeiling, func() {
		s.notifier.SetLoading(false)
	})

	q, err := queue.Run(ctx, s.queue, func() (api.Question, error) {
		return s.source.GetQuestion(ctx, s.filter())
	})

	// Whichever finishes first wins: a fast fetch stops the timer and
	// hides the indicator immediately; a slow one was already hidden at
	// the ceiling.
	if ceiling.Stop() {
		s.notifier.SetLoading(false)
	}
	defer s.publishPerformance()

	if err != nil {
		if errors.Is(err, api.ErrNoQuestion) {
			s.logger.Info().Msg("No question available for current filters")
			s.notifier.Notice("No question available for the current filters")
			return api.Question{}, err
		}

		s.logger.Warn().Err(err).Msg("Foreground fetch failed")
		s.notifier.Notice("Network problem - please try again")
		s.renderCurrent()
		return api.Question{}, err
	}

	s.appendAndRender(q)
	return q, nil
}

// Retreat moves the cursor back one entry and re-renders it. History is
// never mutated. Returns false when already at the first question.
func (s *Session) Retreat() (api.Question, bool) {
	s.mu.Lock()
	if s.cursor <= 0 {
		s.mu.Unlock()
		s.notifier.Notice("Already at the first question")
		return api.Question{}, false
	}
	s.cursor--
	q := s.history[s.cursor]
	s.mu.Unlock()

	s.notifier.Render(q)
	return q, true
}

// Explain fetches the explanation for the question at the cursor and
// surfaces it (truncated) as a notice. The explanation cache, when
// configured, is consulted first and populated on success; cache problems
// degrade to a direct fetch. Failures never touch history or buffer state.
func (s *Session) Explain(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.cursor < 0 {
		s.mu.Unlock()
		s.notifier.Notice("No question to explain yet")
		return "", ErrNoCurrentQuestion
	}
	q := s.history[s.cursor]
	s.mu.Unlock()

	if s.expl != nil {
		text, err := s.expl.Get(ctx, q.ID)
		if err == nil {
			s.notifier.Notice(truncate(text, noticeTruncateLen))
			return text, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("qid", q.ID).Msg("Explanation cache lookup failed")
		}
	}

	text, err := queue.Run(ctx, s.queue, func() (string, error) {
		return s.source.GetExplanation(ctx, q.ID)
	})
	s.publishPerformance()

	if err != nil {
		s.logger.Warn().Err(err).Str("qid", q.ID).Msg("Explanation fetch failed")
		s.notifier.Notice("Could not load the explanation")
		return "", err
	}
	if text == "" {
		s.notifier.Notice("No explanation available for this question")
		return "", nil
	}

	if s.expl != nil {
		if err := s.expl.Set(ctx, q.ID, text); err != nil {
			s.logger.Warn().Err(err).Str("qid", q.ID).Msg("Explanation cache store failed")
		}
	}

	s.notifier.Notice(truncate(text, noticeTruncateLen))
	return text, nil
}

// HistoryLen returns the number of consumed questions.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Cursor returns the current cursor index, -1 when the history is empty.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Current returns the question at the cursor.
func (s *Session) Current() (api.Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 {
		return api.Question{}, false
	}
	return s.history[s.cursor], true
}

// appendAndRender appends q to the history, moves the cursor to it and
// renders it.
func (s *Session) appendAndRender(q api.Question) {
	s.mu.Lock()
	s.history = append(s.history, q)
	s.cursor = len(s.history) - 1
	s.mu.Unlock()

	s.notifier.Render(q)
}

// renderCurrent re-renders the question at the cursor, if any.
func (s *Session) renderCurrent() {
	if q, ok := s.Current(); ok {
		s.notifier.Render(q)
	}
}

// publishPerformance pushes the running averages to the UI.
func (s *Session) publishPerformance() {
	avgMs := float64(s.monitor.AverageLatency()) / float64(time.Millisecond)
	s.notifier.PerformanceUpdate(avgMs, s.monitor.HitRate()*100)
}

// truncate shortens text to at most n runes.
func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
