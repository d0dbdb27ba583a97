// Package perf tracks the overhead of the capture path and throttles
// capture for functions that are called too often to record every time.
package perf

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"
)

// Monitor aggregates capture-path latencies and applies a per-function
// rate limit to capture attempts. All methods are safe for concurrent
// use.
type Monitor struct {
	mu sync.Mutex

	// Latency histogram in microseconds: 1us to 10s, 3 significant digits.
	histogram *hdrhistogram.Histogram
	limiters  map[string]*rate.Limiter

	limit rate.Limit
	burst int

	captures atomic.Int64
	skipped  atomic.Int64
	failures atomic.Int64
	bytes    atomic.Int64
}

// NewMonitor creates a Monitor. capturesPerSecond bounds how often each
// function is captured; zero or negative means unthrottled.
func NewMonitor(capturesPerSecond float64) *Monitor {
	m := &Monitor{
		histogram: hdrhistogram.New(1, 10_000_000, 3),
		limiters:  make(map[string]*rate.Limiter),
	}
	if capturesPerSecond > 0 {
		m.limit = rate.Limit(capturesPerSecond)
		m.burst = 1
	}
	return m
}

// Allow reports whether a capture attempt for functionID fits within the
// configured rate. Unthrottled monitors always allow.
func (m *Monitor) Allow(functionID string) bool {
	if m.limit == 0 {
		return true
	}

	m.mu.Lock()
	limiter, ok := m.limiters[functionID]
	if !ok {
		limiter = rate.NewLimiter(m.limit, m.burst)
		m.limiters[functionID] = limiter
	}
	m.mu.Unlock()

	if limiter.Allow() {
		return true
	}
	m.skipped.Add(1)
	return false
}

// Record notes one capture attempt's duration and outcome.
func (m *Monitor) Record(d time.Duration, err error) {
	if err != nil {
		m.failures.Add(1)
	} else {
		m.captures.Add(1)
	}

	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > 10_000_000 {
		us = 10_000_000
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(us)
	m.mu.Unlock()
}

// AddBytes accumulates the size of a persisted capture.
func (m *Monitor) AddBytes(n int64) {
	m.bytes.Add(n)
}

// Summary is a point-in-time view of a Monitor.
type Summary struct {
	Captures     int64
	Skipped      int64
	Failures     int64
	BytesWritten int64
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	Max          time.Duration
}

// Snapshot returns the current totals and latency percentiles.
func (m *Monitor) Snapshot() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Summary{
		Captures:     m.captures.Load(),
		Skipped:      m.skipped.Load(),
		Failures:     m.failures.Load(),
		BytesWritten: m.bytes.Load(),
		P50:          time.Duration(m.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:          time.Duration(m.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:          time.Duration(m.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Max:          time.Duration(m.histogram.Max()) * time.Microsecond,
	}
}
