package viewer

import (
	"sync"
	"time"
)

// RenderStats summarises observed render pass durations.
type RenderStats struct {
	Samples  int
	Failures int
	Average  time.Duration
	Max      time.Duration
	Last     time.Duration
}

// AverageFPS derives the frame rate the render task could sustain.
func (s RenderStats) AverageFPS() float64 {
	if s.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Average)
}

// RenderMonitor accumulates timing statistics for the render task.
type RenderMonitor struct {
	mu       sync.Mutex
	samples  int
	failures int
	total    time.Duration
	max      time.Duration
	last     time.Duration
}

// NewRenderMonitor constructs an empty monitor.
func NewRenderMonitor() *RenderMonitor {
	return &RenderMonitor{}
}

// Observe records the duration of a completed render pass.
func (m *RenderMonitor) Observe(duration time.Duration) {
	if m == nil || duration < 0 {
		return
	}
	m.mu.Lock()
	//1.- Accumulate the count and total for the running average.
	m.samples++
	m.total += duration
	//2.- Track the slowest pass so spikes stay visible.
	if duration > m.max {
		m.max = duration
	}
	m.last = duration
	m.mu.Unlock()
}

// Fail counts a pass that was rejected before drawing.
func (m *RenderMonitor) Fail() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

// Snapshot returns a copy of the aggregated statistics.
func (m *RenderMonitor) Snapshot() RenderStats {
	if m == nil {
		return RenderStats{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := RenderStats{Samples: m.samples, Failures: m.failures, Max: m.max, Last: m.last}
	if m.samples > 0 {
		stats.Average = m.total / time.Duration(m.samples)
	}
	return stats
}

// Reset clears the accumulated statistics.
func (m *RenderMonitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.samples, m.failures = 0, 0
	m.total, m.max, m.last = 0, 0, 0
	m.mu.Unlock()
}
