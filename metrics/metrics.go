// Package metrics implements the instrumentation layer of the engine:
// counters, gauges, histograms, and meters, owned by a Registry and
// exported through the reporter and the Prometheus endpoint. Counters
// and gauges are lock-free; the other instruments take a short mutex
// per update.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter accumulates a monotonically increasing count.
type Counter struct {
	name string
	n    atomic.Int64
}

// NewCounter creates a counter. Most callers want Registry.Counter,
// which also makes the instrument visible to exporters.
func NewCounter(name string) *Counter { return &Counter{name: name} }

// Inc adds one.
func (c *Counter) Inc() { c.n.Add(1) }

// Add adds n to the count. Values <= 0 are dropped so the counter can
// never move backwards.
func (c *Counter) Add(n int64) {
	if n <= 0 {
		return
	}
	c.n.Add(n)
}

// Value reports the count so far.
func (c *Counter) Value() int64 { return c.n.Load() }

// Name reports the instrument name.
func (c *Counter) Name() string { return c.name }

// Gauge holds a value that moves in both directions, such as a queue
// depth or an in-flight request count.
type Gauge struct {
	name string
	n    atomic.Int64
}

// NewGauge creates a gauge.
func NewGauge(name string) *Gauge { return &Gauge{name: name} }

// Set replaces the current value.
func (g *Gauge) Set(v int64) { g.n.Store(v) }

// Inc adds one.
func (g *Gauge) Inc() { g.n.Add(1) }

// Dec subtracts one.
func (g *Gauge) Dec() { g.n.Add(-1) }

// Value reports the current value.
func (g *Gauge) Value() int64 { return g.n.Load() }

// Name reports the instrument name.
func (g *Gauge) Name() string { return g.name }

// Histogram condenses a stream of observations into count, sum, min,
// and max. It keeps no buckets; percentile queries belong to
// MetricsCollector, which retains raw samples.
type Histogram struct {
	name string

	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

// NewHistogram creates an empty histogram.
func NewHistogram(name string) *Histogram { return &Histogram{name: name} }

// Observe folds one value into the summary.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v
	h.mu.Unlock()
}

// Count reports the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Sum reports the running total of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Min reports the smallest observation, or 0 before the first one.
func (h *Histogram) Min() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.min
}

// Max reports the largest observation, or 0 before the first one.
func (h *Histogram) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.max
}

// Mean reports the arithmetic mean of the observations, or 0 before the
// first one.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// Name reports the instrument name.
func (h *Histogram) Name() string { return h.name }

// Timer measures one operation and records the elapsed milliseconds
// into a histogram.
type Timer struct {
	began time.Time
	h     *Histogram
}

// NewTimer starts the clock. A nil histogram is allowed; Stop then only
// returns the duration.
func NewTimer(h *Histogram) *Timer {
	return &Timer{began: time.Now(), h: h}
}

// Stop records the milliseconds elapsed since NewTimer and returns the
// duration. Stopping twice records two observations from the same start
// point.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.began)
	if t.h != nil {
		t.h.Observe(float64(d.Milliseconds()))
	}
	return d
}
