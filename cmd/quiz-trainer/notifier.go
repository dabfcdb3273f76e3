package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/quizforge/quiz-client/pkg/api"
)

// consoleNotifier renders session updates to a terminal. It implements
// session.Notifier and api.RetrySignal.
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleNotifier(out io.Writer) *consoleNotifier {
	return &consoleNotifier{out: out}
}

func (c *consoleNotifier) Render(q api.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n[%s/%s] %s\n", q.Skill, q.Difficulty, q.Prompt)
	for i, choice := range q.Choices {
		fmt.Fprintf(c.out, "  %c) %s\n", 'a'+i, choice)
	}
}

func (c *consoleNotifier) SetLoading(visible bool) {
	if visible {
		c.printf("loading...")
	}
}

func (c *consoleNotifier) SetRetryBanner(visible bool) {
	if visible {
		c.printf("connection unstable, retrying...")
	}
}

func (c *consoleNotifier) Notice(message string) {
	c.printf("%s", message)
}

func (c *consoleNotifier) PreloadProgress(pct float64) {
	filled := int(pct / 10)
	c.printf("preload [%s%s] %3.0f%%",
		strings.Repeat("#", filled), strings.Repeat("-", 10-filled), pct)
}

func (c *consoleNotifier) PerformanceUpdate(avgMs, hitRatePct float64) {
	c.printf("perf: avg %.0fms, hit rate %.0f%%", avgMs, hitRatePct)
}

func (c *consoleNotifier) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}
