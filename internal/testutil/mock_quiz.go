// Package testutil provides testing utilities for the quiz client.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock quiz API response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockQuizAPI is a configurable mock of the indexed quiz API. Actions are
// selected by the "action" query parameter, matching the real endpoint.
type MockQuizAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	scripts  map[string][]MockResponse

	// Tracking
	requestCounts map[string]int
	lastQuery     url.Values
}

// NewMockQuizAPI creates a new mock quiz API server.
func NewMockQuizAPI() *MockQuizAPI {
	mock := &MockQuizAPI{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		scripts:       make(map[string][]MockResponse),
		requestCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := r.URL.Query().Get("action")

		mock.mu.Lock()
		mock.requestCounts[action]++
		mock.lastQuery = r.URL.Query()
		handler, hasHandler := mock.handlers[action]
		var scripted *MockResponse
		if script := mock.scripts[action]; len(script) > 0 {
			scripted = &script[0]
			// Consume the response unless it is the last one, which stays
			// sticky for all further requests.
			if len(script) > 1 {
				mock.scripts[action] = script[1:]
			}
		}
		mock.mu.Unlock()

		if hasHandler {
			handler(w, r)
			return
		}
		if scripted != nil {
			writeResponse(w, *scripted)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockQuizAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockQuizAPI) Close() {
	m.server.Close()
}

// Reset clears tracking counters and scripted responses.
func (m *MockQuizAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCounts = make(map[string]int)
	m.scripts = make(map[string][]MockResponse)
	m.lastQuery = nil
}

// SetHandler sets a custom handler for an action.
func (m *MockQuizAPI) SetHandler(action string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[action] = handler
}

// SetResponse configures a sticky response for an action.
func (m *MockQuizAPI) SetResponse(action string, resp MockResponse) {
	m.SetScript(action, resp)
}

// SetScript configures a sequence of responses for an action. Responses
// are served in order; the final response repeats for all later requests.
func (m *MockQuizAPI) SetScript(action string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, action)
	m.scripts[action] = append([]MockResponse(nil), responses...)
}

// RequestCount returns the number of requests made for an action.
func (m *MockQuizAPI) RequestCount(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCounts[action]
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockQuizAPI) LastQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

// defaultHandler serves an empty successful payload.
func (m *MockQuizAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{}`))
}

// QuestionJSON builds a question payload with the given id.
func QuestionJSON(id string) string {
	return fmt.Sprintf(`{"id":%q,"prompt":"Prompt for %s","choices":["a","b","c","d"],"kind":"multiple-choice","difficulty":"medium","skill":"grammar"}`, id, id)
}

// NewQuestionResponse creates a successful getQuestionIndexed response.
func NewQuestionResponse(id string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"question":%s}`, QuestionJSON(id)),
	}
}

// NewEmptyQuestionResponse creates a successful response with no question.
func NewEmptyQuestionResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"question":null}`,
	}
}

// NewBundleResponse creates a getBundleIndexed response with ids q1..qN.
func NewBundleResponse(n int) MockResponse {
	items := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, QuestionJSON(fmt.Sprintf("q%d", i)))
	}
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"questions":[%s]}`, strings.Join(items, ",")),
	}
}

// NewExplanationResponse creates a getExplanation response.
func NewExplanationResponse(text string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"explanation":%q}`, text),
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":"rate limit exceeded"}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"internal server error"}`,
	}
}
