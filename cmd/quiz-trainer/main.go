package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quizforge/quiz-client/pkg/api"
	"github.com/quizforge/quiz-client/pkg/cache"
	"github.com/quizforge/quiz-client/pkg/logging"
	"github.com/quizforge/quiz-client/pkg/perf"
	"github.com/quizforge/quiz-client/pkg/queue"
	"github.com/quizforge/quiz-client/pkg/session"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
		Output: os.Stderr,
	})

	// Configuration from environment
	apiURL := getEnv("QUIZ_API_URL", "")
	if apiURL == "" {
		logger.Fatal().Msg("QUIZ_API_URL is required")
	}
	skill := getEnv("QUIZ_SKILL", "")
	difficulty := getEnv("QUIZ_DIFFICULTY", "")
	count := getEnvInt("QUIZ_COUNT", 5)
	redisURL := getEnv("REDIS_URL", "")
	metricsAddr := getEnv("METRICS_ADDR", "")

	// Optional metrics endpoint
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, "OK")
			})
			logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	// Optional Redis-backed explanation cache
	var explanations *cache.Explanations
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", redisURL).
				Msg("Redis unreachable - explanation caching disabled")
		} else {
			explanations = cache.NewExplanations(redisClient, cache.DefaultTTL)
			logger.Info().Str("addr", redisURL).Msg("Explanation caching enabled")
		}
	}

	notifier := newConsoleNotifier(os.Stdout)
	monitor := perf.NewMonitor()
	gate := queue.New(queue.DefaultLimit)

	apiCfg := api.DefaultConfig(apiURL)
	apiCfg.Signal = notifier
	client, err := api.New(apiCfg, monitor)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}

	sess, err := session.New(session.Config{
		Source:   client,
		Notifier: notifier,
		Filter: func() api.Filter {
			return api.Filter{Skill: skill, Difficulty: difficulty}
		},
		Queue:        gate,
		Monitor:      monitor,
		Explanations: explanations,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create session")
	}

	ctx := context.Background()

	added, err := sess.Preload(ctx, session.DefaultPreloadSize)
	if err != nil {
		logger.Warn().Err(err).Msg("Pre-load incomplete")
	}
	logger.Info().Int("buffered", added).Msg("Pre-load finished")

	for i := 0; i < count; i++ {
		if _, err := sess.Advance(ctx); err != nil {
			logger.Warn().Err(err).Int("step", i+1).Msg("Advance failed")
			continue
		}
		if _, err := sess.Explain(ctx); err != nil {
			logger.Debug().Err(err).Msg("No explanation shown")
		}
	}

	snap := monitor.Snapshot()
	avg := time.Duration(0)
	if snap.TotalRequests > 0 {
		avg = snap.TotalTime / time.Duration(snap.TotalRequests)
	}
	logger.Info().
		Int64("requests", snap.TotalRequests).
		Dur("avg_latency", avg).
		Float64("hit_rate_pct", monitor.HitRate()*100).
		Msg("Session finished")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
