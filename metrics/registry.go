package metrics

import "sync"

// Registry owns named instruments. Lookups create the instrument on
// first use, so call sites fetch by name with no registration ceremony.
// Each instrument kind has its own table; reusing a name across kinds
// is legal but the flattened views will collide on the key.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	meters     map[string]*Meter
}

// DefaultRegistry holds the process-wide instruments declared in
// standard.go.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		meters:     make(map[string]*Meter),
	}
}

// fetch returns tbl[name], creating it with build under the write lock
// when absent. The read lock serves the common hit path; the write path
// re-checks so concurrent creators settle on one instance.
func fetch[V any](r *Registry, tbl map[string]V, name string, build func() V) V {
	r.mu.RLock()
	v, ok := tbl[name]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := tbl[name]; ok {
		return v
	}
	v = build()
	tbl[name] = v
	return v
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	return fetch(r, r.counters, name, func() *Counter { return NewCounter(name) })
}

// Gauge returns the named gauge, creating it on first use.
func (r *Registry) Gauge(name string) *Gauge {
	return fetch(r, r.gauges, name, func() *Gauge { return NewGauge(name) })
}

// Histogram returns the named histogram, creating it on first use.
func (r *Registry) Histogram(name string) *Histogram {
	return fetch(r, r.histograms, name, func() *Histogram { return NewHistogram(name) })
}

// Meter returns the named meter, creating it on first use.
func (r *Registry) Meter(name string) *Meter {
	return fetch(r, r.meters, name, func() *Meter { return NewMeter(name) })
}

// Snapshot captures the current value of every instrument, keyed by
// name. Counters and gauges appear as int64; histograms and meters as
// nested maps in the shapes produced by histogramSnapshot and
// meterSnapshot.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]interface{},
		len(r.counters)+len(r.gauges)+len(r.histograms)+len(r.meters))
	for name, c := range r.counters {
		snap[name] = c.Value()
	}
	for name, g := range r.gauges {
		snap[name] = g.Value()
	}
	for name, h := range r.histograms {
		snap[name] = histogramSnapshot(h)
	}
	for name, m := range r.meters {
		snap[name] = meterSnapshot(m)
	}
	return snap
}

func histogramSnapshot(h *Histogram) map[string]interface{} {
	return map[string]interface{}{
		"count": h.Count(),
		"sum":   h.Sum(),
		"min":   h.Min(),
		"max":   h.Max(),
		"mean":  h.Mean(),
	}
}

func meterSnapshot(m *Meter) map[string]interface{} {
	return map[string]interface{}{
		"count": m.Count(),
		"rate1": m.Rate1(),
		"mean":  m.RateMean(),
	}
}
