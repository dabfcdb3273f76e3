package integration

import (
	"context"
	"testing"
	"time"

	"github.com/quizforge/quiz-client/internal/testutil"
	"github.com/quizforge/quiz-client/pkg/api"
	"github.com/quizforge/quiz-client/pkg/cache"
	"github.com/quizforge/quiz-client/pkg/perf"
	"github.com/quizforge/quiz-client/pkg/queue"
	"github.com/quizforge/quiz-client/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// nopNotifier satisfies session.Notifier for flows where UI output is
// irrelevant.
type nopNotifier struct{}

func (nopNotifier) Render(api.Question)           {}
func (nopNotifier) SetLoading(bool)               {}
func (nopNotifier) SetRetryBanner(bool)           {}
func (nopNotifier) Notice(string)                 {}
func (nopNotifier) PreloadProgress(float64)       {}
func (nopNotifier) PerformanceUpdate(_, _ float64) {}

func newSession(t *testing.T, mock *testutil.MockQuizAPI, expl *cache.Explanations) (*session.Session, *perf.Monitor) {
	t.Helper()

	monitor := perf.NewMonitor()

	cfg := api.DefaultConfig(mock.URL())
	cfg.Retry = api.RetryConfig{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond}
	client, err := api.New(cfg, monitor)
	if err != nil {
		t.Fatalf("Failed to create API client: %v", err)
	}

	sess, err := session.New(session.Config{
		Source:       client,
		Notifier:     nopNotifier{},
		Queue:        queue.New(2),
		Monitor:      monitor,
		Explanations: expl,
	})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return sess, monitor
}

// TestFullSessionFlow exercises pre-load, buffer consumption, foreground
// fetching and explanation caching end to end.
func TestFullSessionFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockQuizAPI()
	defer mock.Close()

	// Only the pre-load bundle carries questions; background top-ups get an
	// empty bundle so the fifth advance is forced onto the network.
	mock.SetScript("getBundleIndexed",
		testutil.NewBundleResponse(4),
		testutil.NewBundleResponse(0),
	)
	mock.SetResponse("getQuestionIndexed", testutil.NewQuestionResponse("extra"))
	mock.SetResponse("getExplanation", testutil.NewExplanationResponse("cached explanation text"))

	expl := cache.NewExplanations(redisClient, time.Minute)
	sess, monitor := newSession(t, mock, expl)
	ctx := context.Background()

	// Pre-load fills the buffer from one bundle call.
	added, err := sess.Preload(ctx, 4)
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if added != 4 {
		t.Fatalf("Preload added = %d, want 4", added)
	}

	// Four advances drain the buffer; the fifth goes to the network.
	for i := 0; i < 5; i++ {
		if _, err := sess.Advance(ctx); err != nil {
			t.Fatalf("Advance %d failed: %v", i+1, err)
		}
	}
	if sess.HistoryLen() != 5 || sess.Cursor() != 4 {
		t.Errorf("history = %d/%d, want len 5 cursor 4", sess.HistoryLen(), sess.Cursor())
	}

	q, _ := sess.Current()
	if q.ID != "extra" {
		t.Errorf("fifth question = %q, want the network-fetched one", q.ID)
	}

	// First Explain hits the network and populates Redis.
	text, err := sess.Explain(ctx)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if text != "cached explanation text" {
		t.Errorf("Explain = %q", text)
	}
	if got := mock.RequestCount("getExplanation"); got != 1 {
		t.Fatalf("explanation requests = %d, want 1", got)
	}

	// Second Explain must be served from Redis, not the API.
	if _, err := sess.Explain(ctx); err != nil {
		t.Fatalf("second Explain failed: %v", err)
	}
	if got := mock.RequestCount("getExplanation"); got != 1 {
		t.Errorf("explanation requests = %d after cached Explain, want still 1", got)
	}

	// Hit rate: 5 buffer checks, 4 hits.
	if got := monitor.HitRate(); got != 0.8 {
		t.Errorf("HitRate = %v, want 0.8", got)
	}
}

// TestSessionSurvivesFlakyAPI verifies the retry path keeps a session
// usable against an API that rate-limits the first attempts.
func TestSessionSurvivesFlakyAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockQuizAPI()
	defer mock.Close()

	mock.SetScript("getQuestionIndexed",
		testutil.NewRateLimitResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewQuestionResponse("q-flaky"),
	)

	expl := cache.NewExplanations(redisClient, time.Minute)
	sess, _ := newSession(t, mock, expl)

	q, err := sess.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance failed despite retries: %v", err)
	}
	if q.ID != "q-flaky" {
		t.Errorf("question = %q, want q-flaky", q.ID)
	}
	if got := mock.RequestCount("getQuestionIndexed"); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}
