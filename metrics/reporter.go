package metrics

import (
	"sync"
	"time"
)

// ReportBackend receives periodic metric snapshots. Implementations
// push to a sink such as a log, a time-series database, or a wire
// protocol.
type ReportBackend interface {
	Report(metrics map[string]float64) error
}

// MetricsReporter flattens a Registry into float64 values on a fixed
// interval and fans the snapshot out to named backends. Ad-hoc values
// recorded with RecordMetric ride along and shadow registry keys of
// the same name.
type MetricsReporter struct {
	interval time.Duration
	registry *Registry

	mu       sync.RWMutex
	backends map[string]ReportBackend
	extra    map[string]float64
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMetricsReporter creates a reporter that exports the registry's
// instruments every interval. A nil registry falls back to
// DefaultRegistry.
func NewMetricsReporter(interval time.Duration, registry *Registry) *MetricsReporter {
	if registry == nil {
		registry = DefaultRegistry
	}
	return &MetricsReporter{
		interval: interval,
		registry: registry,
		backends: make(map[string]ReportBackend),
		extra:    make(map[string]float64),
	}
}

// RegisterBackend adds or replaces the backend stored under name.
func (r *MetricsReporter) RegisterBackend(name string, backend ReportBackend) {
	r.mu.Lock()
	r.backends[name] = backend
	r.mu.Unlock()
}

// UnregisterBackend removes the backend stored under name, if any.
func (r *MetricsReporter) UnregisterBackend(name string) {
	r.mu.Lock()
	delete(r.backends, name)
	r.mu.Unlock()
}

// RecordMetric stores an ad-hoc value for inclusion in every following
// snapshot. Recording the same name again overwrites the value.
func (r *MetricsReporter) RecordMetric(name string, value float64) {
	r.mu.Lock()
	r.extra[name] = value
	r.mu.Unlock()
}

// RecordTimer records a duration under name, in milliseconds.
func (r *MetricsReporter) RecordTimer(name string, duration time.Duration) {
	r.RecordMetric(name, float64(duration.Milliseconds()))
}

// Snapshot returns the view a backend would receive right now: every
// registry instrument reduced to float64 values, with ad-hoc values
// merged on top. Composite instruments expand to dotted keys, as in
// "kzg.verify_ms.mean".
func (r *MetricsReporter) Snapshot() map[string]float64 {
	snap := flattenRegistry(r.registry)

	r.mu.RLock()
	for k, v := range r.extra {
		snap[k] = v
	}
	r.mu.RUnlock()
	return snap
}

// flattenRegistry reduces a registry snapshot to scalar float64 values.
// Histograms contribute count/sum/min/max/mean keys, meters contribute
// count/rate1/mean keys.
func flattenRegistry(reg *Registry) map[string]float64 {
	raw := reg.Snapshot()
	out := make(map[string]float64, len(raw))
	for name, v := range raw {
		switch val := v.(type) {
		case int64:
			out[name] = float64(val)
		case map[string]interface{}:
			for sub, sv := range val {
				out[name+"."+sub] = toFloat(sv)
			}
		}
	}
	return out
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// Start launches the export goroutine. Calling Start while running is
// a no-op.
func (r *MetricsReporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.run(r.stopCh, r.doneCh)
}

// Stop shuts the export goroutine down and waits for it to finish.
// Calling Stop while stopped is a no-op.
func (r *MetricsReporter) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop, done := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the export goroutine is live.
func (r *MetricsReporter) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// run delivers a snapshot to every backend once per interval until
// stop closes. The channels come in as arguments so a Stop/Start pair
// cannot race the goroutine against fresh channel fields.
func (r *MetricsReporter) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	tick := time.NewTicker(r.interval)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			r.deliver(r.Snapshot())
		}
	}
}

// deliver hands one snapshot to each backend. A failing backend must
// not stall the loop or starve its siblings, so errors are dropped.
func (r *MetricsReporter) deliver(snap map[string]float64) {
	r.mu.RLock()
	sinks := make([]ReportBackend, 0, len(r.backends))
	for _, b := range r.backends {
		sinks = append(sinks, b)
	}
	r.mu.RUnlock()

	for _, b := range sinks {
		_ = b.Report(snap)
	}
}
