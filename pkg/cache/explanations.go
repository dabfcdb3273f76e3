// Package cache provides a Redis-backed store for question explanations.
// Explanations are immutable per question id, which makes them safe to
// share across sessions and processes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested question has no cached
	// explanation.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultTTL is how long explanations stay cached.
const DefaultTTL = 24 * time.Hour

// Entry is a cached explanation.
type Entry struct {
	// Text is the explanation body.
	Text string `json:"text"`

	// CachedAt is when the explanation was stored.
	CachedAt time.Time `json:"cached_at"`
}

// Explanations caches explanation texts in Redis keyed by question id.
type Explanations struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewExplanations creates an explanation cache. A non-positive ttl falls
// back to DefaultTTL.
func NewExplanations(redisClient *redis.Client, ttl time.Duration) *Explanations {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Explanations{
		redis: redisClient,
		ttl:   ttl,
	}
}

// key builds the Redis key for a question id.
func key(qid string) string {
	return "quiz:explanation:" + qid
}

// Get retrieves the cached explanation for a question id.
// Returns ErrCacheMiss if none is stored.
func (e *Explanations) Get(ctx context.Context, qid string) (string, error) {
	data, err := e.redis.Get(ctx, key(qid)).Bytes()
	if err != nil {
		if err == redis.Nil {
			ExplanationMisses.Inc()
			return "", ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return "", fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	ExplanationHits.Inc()
	return entry.Text, nil
}

// Set stores an explanation for a question id with the configured TTL.
// Empty explanations are not stored; "no explanation" is re-checked on the
// next request.
func (e *Explanations) Set(ctx context.Context, qid string, text string) error {
	if text == "" {
		return nil
	}

	entry := Entry{
		Text:     text,
		CachedAt: time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := e.redis.Set(ctx, key(qid), data, e.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cached explanation.
func (e *Explanations) Delete(ctx context.Context, qid string) error {
	if err := e.redis.Del(ctx, key(qid)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
