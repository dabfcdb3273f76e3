package perf

import (
	"sync"
	"testing"
	"time"
)

func TestMonitor_Empty(t *testing.T) {
	m := NewMonitor()

	if got := m.AverageLatency(); got != 0 {
		t.Errorf("AverageLatency = %v, want 0 with no samples", got)
	}
	if got := m.HitRate(); got != 0 {
		t.Errorf("HitRate = %v, want 0 with no checks", got)
	}
}

func TestMonitor_AverageLatency(t *testing.T) {
	m := NewMonitor()

	samples := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		150 * time.Millisecond,
		50 * time.Millisecond,
		300 * time.Millisecond,
	}
	for _, s := range samples {
		m.RecordFetch(s)
	}

	if got := m.AverageLatency(); got != 160*time.Millisecond {
		t.Errorf("AverageLatency = %v, want 160ms", got)
	}

	snap := m.Snapshot()
	if snap.TotalRequests != 5 {
		t.Errorf("TotalRequests = %d, want 5", snap.TotalRequests)
	}
	if snap.TotalTime != 800*time.Millisecond {
		t.Errorf("TotalTime = %v, want 800ms", snap.TotalTime)
	}
}

func TestMonitor_HitRate(t *testing.T) {
	m := NewMonitor()

	for i := 0; i < 7; i++ {
		m.RecordCacheCheck(true)
	}
	for i := 0; i < 3; i++ {
		m.RecordCacheCheck(false)
	}

	if got := m.HitRate(); got != 0.7 {
		t.Errorf("HitRate = %v, want 0.7", got)
	}

	snap := m.Snapshot()
	if snap.CacheChecks != 10 || snap.CacheHits != 7 {
		t.Errorf("Snapshot = %d checks / %d hits, want 10/7", snap.CacheChecks, snap.CacheHits)
	}
}

func TestMonitor_ConcurrentRecording(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordFetch(10 * time.Millisecond)
				m.RecordCacheCheck(j%2 == 0)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.TotalRequests != 1000 {
		t.Errorf("TotalRequests = %d, want 1000", snap.TotalRequests)
	}
	if snap.CacheChecks != 1000 {
		t.Errorf("CacheChecks = %d, want 1000", snap.CacheChecks)
	}
	if snap.CacheHits != 500 {
		t.Errorf("CacheHits = %d, want 500", snap.CacheHits)
	}
}
