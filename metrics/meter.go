package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Meter measures the rate of an event stream. It keeps a lifetime count
// plus 1-, 5-, and 15-minute moving averages in the style of load
// averages. Ticks are driven lazily from Mark and the rate accessors,
// so an idle meter costs nothing.
type Meter struct {
	name  string
	count atomic.Int64
	avg1  *EWMA
	avg5  *EWMA
	avg15 *EWMA

	startTime time.Time

	mu       sync.Mutex
	lastTick time.Time
}

// NewMeter creates a meter. Most callers want Registry.Meter.
func NewMeter(name string) *Meter {
	now := time.Now()
	return &Meter{
		name:      name,
		avg1:      NewEWMA1(),
		avg5:      NewEWMA5(),
		avg15:     NewEWMA15(),
		startTime: now,
		lastTick:  now,
	}
}

// Mark records n events.
func (m *Meter) Mark(n int64) {
	m.count.Add(n)
	m.avg1.Update(n)
	m.avg5.Update(n)
	m.avg15.Update(n)
	m.catchUp()
}

// catchUp fires one tick per interval elapsed since the last tick, so a
// meter that went quiet decays as if it had been ticked on schedule.
func (m *Meter) catchUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for time.Since(m.lastTick) >= tickEvery {
		m.avg1.Tick()
		m.avg5.Tick()
		m.avg15.Tick()
		m.lastTick = m.lastTick.Add(tickEvery)
	}
}

// Count reports the total number of events marked.
func (m *Meter) Count() int64 { return m.count.Load() }

// Rate1 reports the 1-minute moving average in events per second.
func (m *Meter) Rate1() float64 {
	m.catchUp()
	return m.avg1.Rate()
}

// Rate5 reports the 5-minute moving average in events per second.
func (m *Meter) Rate5() float64 {
	m.catchUp()
	return m.avg5.Rate()
}

// Rate15 reports the 15-minute moving average in events per second.
func (m *Meter) Rate15() float64 {
	m.catchUp()
	return m.avg15.Rate()
}

// Name reports the instrument name.
func (m *Meter) Name() string { return m.name }

// RateMean reports the lifetime average rate in events per second.
func (m *Meter) RateMean() float64 {
	secs := time.Since(m.startTime).Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(m.count.Load()) / secs
}
