// Package api provides the quiz indexed-API client: GET transport with
// query parameters, JSON decoding, and exponential-backoff retries.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quizforge/quiz-client/pkg/perf"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Indexed API action names.
const (
	actionGetBundle      = "getBundleIndexed"
	actionGetQuestion    = "getQuestionIndexed"
	actionGetExplanation = "getExplanation"
)

// Prometheus metrics for quiz API requests.
var (
	quizRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_requests_total",
		Help: "Total quiz API requests by action and status",
	}, []string{"action", "status"})

	quizErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quiz_errors_total",
		Help: "Total quiz API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the indexed API endpoint (REQUIRED). Actions are selected
	// with the "action" query parameter.
	BaseURL string

	// Retry controls the backoff fetcher.
	Retry RetryConfig

	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	// Signal receives retry-banner toggles. Optional.
	Signal RetrySignal
}

// DefaultConfig returns a safe default configuration for the given
// endpoint.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		Retry:          DefaultRetryConfig(),
		RequestTimeout: 30 * time.Second,
	}
}

// Client fetches questions, bundles and explanations from the indexed API.
// One logical request may span several HTTP attempts; callers only ever
// see the terminal outcome.
type Client struct {
	httpClient *http.Client
	config     Config
	signal     RetrySignal
	monitor    *perf.Monitor
	logger     zerolog.Logger
}

// New creates a quiz API client. The monitor receives one latency sample
// per successful logical request.
func New(cfg Config, monitor *perf.Monitor) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialBackoff <= 0 {
		cfg.Retry.InitialBackoff = DefaultRetryConfig().InitialBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if monitor == nil {
		monitor = perf.NewMonitor()
	}

	var signal RetrySignal = noopSignal{}
	if cfg.Signal != nil {
		signal = cfg.Signal
	}

	logger := log.With().Str("component", "quiz-api").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		config:  cfg,
		signal:  signal,
		monitor: monitor,
		logger:  logger,
	}, nil
}

// GetBundle fetches up to size questions matching the filter in one call.
func (c *Client) GetBundle(ctx context.Context, filter Filter, size int) ([]Question, error) {
	params := filter.values()
	params.Set("size", fmt.Sprintf("%d", size))

	var body bundleResponse
	if err := c.getJSON(ctx, actionGetBundle, params, &body); err != nil {
		return nil, err
	}
	return body.Questions, nil
}

// GetQuestion fetches a single question matching the filter. Returns
// ErrNoQuestion when the API answers successfully but has nothing to
// serve.
func (c *Client) GetQuestion(ctx context.Context, filter Filter) (Question, error) {
	var body questionResponse
	if err := c.getJSON(ctx, actionGetQuestion, filter.values(), &body); err != nil {
		return Question{}, err
	}
	if body.Question == nil || body.Question.ID == "" {
		return Question{}, ErrNoQuestion
	}
	return *body.Question, nil
}

// GetExplanation fetches the explanation text for a question id. An empty
// string means the question has no explanation.
func (c *Client) GetExplanation(ctx context.Context, qid string) (string, error) {
	params := url.Values{}
	params.Set("qid", qid)

	var body explanationResponse
	if err := c.getJSON(ctx, actionGetExplanation, params, &body); err != nil {
		return "", err
	}
	return body.Explanation, nil
}

// getJSON performs one logical GET request with retries and decodes the
// response body into out. On success the elapsed time from request start
// to decoded body is recorded in the monitor.
func (c *Client) getJSON(ctx context.Context, action string, params url.Values, out any) error {
	start := time.Now()

	err := retryWithBackoff(ctx, c.config.Retry, c.signal, func() error {
		return c.attempt(ctx, action, params, out)
	})
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	c.monitor.RecordFetch(elapsed)

	c.logger.Debug().
		Str("action", action).
		Dur("elapsed", elapsed).
		Msg("Request completed")

	return nil
}

// attempt executes a single HTTP attempt. Any non-2xx status and any
// transport failure is returned as an APIError for the retry loop; 429
// only differs in its metrics label.
func (c *Client) attempt(ctx context.Context, action string, params url.Values, out any) error {
	reqURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	query := reqURL.Query()
	query.Set("action", action)
	for key, vals := range params {
		for _, v := range vals {
			query.Set(key, v)
		}
	}
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("action", action).Msg("HTTP request failed")
		quizErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		quizRequestsTotal.WithLabelValues(action, "network_error").Inc()
		return &APIError{Class: ErrorClassNetwork, Message: "transport failure", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		quizErrorsTotal.WithLabelValues(string(class)).Inc()
		quizRequestsTotal.WithLabelValues(action, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		c.logger.Warn().
			Str("action", action).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Quiz API request error")

		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      class,
			Message:    resp.Status,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		quizErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		quizRequestsTotal.WithLabelValues(action, "decode_error").Inc()
		return &APIError{
			StatusCode: resp.StatusCode,
			Class:      ErrorClassNetwork,
			Message:    "decode response body",
			Err:        err,
		}
	}

	quizRequestsTotal.WithLabelValues(action, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
