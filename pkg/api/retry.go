package api

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	quizRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	quizRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quiz_retry_backoff_seconds",
		Help:    "Backoff duration before retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8},
	}, []string{"error_class"})

	quizRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_retry_exhausted_total",
		Help: "Total number of requests that exhausted all retry attempts",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for the backoff fetcher.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first
	// failure, so a request makes at most MaxRetries+1 attempts.
	MaxRetries int

	// InitialBackoff is the delay before the first retry. It doubles on
	// every subsequent retry.
	InitialBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration: three
// retries with delays of 500ms, 1s and 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// RetrySignal is the side channel for the retry banner. The banner is set
// while a request is being retried and cleared on any terminal outcome.
type RetrySignal interface {
	SetRetryBanner(visible bool)
}

// noopSignal is used when no banner sink is configured.
type noopSignal struct{}

func (noopSignal) SetRetryBanner(bool) {}

// retryWithBackoff runs fn until it succeeds or the retry budget is spent.
// Every failure is retryable; rate-limited, other non-2xx and network
// failures all follow the same schedule. The banner goes up on the first
// failure and comes down when the request settles either way.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, signal RetrySignal, fn func() error) error {
	attempts := cfg.MaxRetries + 1
	backoff := cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			signal.SetRetryBanner(false)
			return nil
		}

		lastErr = err
		class := classOf(err)

		if attempt >= attempts {
			break
		}

		signal.SetRetryBanner(true)
		quizRetriesTotal.WithLabelValues(string(class)).Inc()
		quizRetryBackoffSeconds.WithLabelValues(string(class)).Observe(backoff.Seconds())

		log.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			signal.SetRetryBanner(false)
			log.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
	}

	class := classOf(lastErr)
	signal.SetRetryBanner(false)
	quizRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	log.Warn().
		Str("error_class", string(class)).
		Int("attempts", attempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRequestExhausted, attempts, lastErr)
}
