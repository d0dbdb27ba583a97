package perf

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_Unthrottled(t *testing.T) {
	m := NewMonitor(0)
	for i := 0; i < 100; i++ {
		assert.True(t, m.Allow("hot.fn"))
	}
	assert.Zero(t, m.Snapshot().Skipped)
}

func TestAllow_ThrottlesPerFunction(t *testing.T) {
	m := NewMonitor(1)

	// Burst of one: the first attempt passes, immediate retries do not.
	assert.True(t, m.Allow("hot.fn"))
	assert.False(t, m.Allow("hot.fn"))

	// Each function is rate limited independently.
	assert.True(t, m.Allow("other.fn"))

	assert.Equal(t, int64(1), m.Snapshot().Skipped)
}

func TestRecord_CountsOutcomes(t *testing.T) {
	m := NewMonitor(0)

	m.Record(50*time.Microsecond, nil)
	m.Record(100*time.Microsecond, nil)
	m.Record(2*time.Millisecond, errors.New("disk full"))
	m.AddBytes(512)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Captures)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(512), s.BytesWritten)
	assert.GreaterOrEqual(t, s.Max, s.P50)
	assert.Positive(t, s.P50)
}

func TestRecord_ClampsOutOfRangeDurations(t *testing.T) {
	m := NewMonitor(0)

	m.Record(0, nil)
	m.Record(time.Hour, nil)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.Captures)
	assert.LessOrEqual(t, s.Max, 10*time.Second+time.Second)
}

func TestMonitor_ConcurrentUse(t *testing.T) {
	m := NewMonitor(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Allow("concurrent.fn")
				m.Record(10*time.Microsecond, nil)
				m.AddBytes(4)
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(400), s.Captures)
	assert.Equal(t, int64(1600), s.BytesWritten)
}
