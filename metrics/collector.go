package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// MetricsCollector is an in-memory store of tagged, timestamped metric
// samples. Unlike the Registry instruments, which condense as they go,
// the collector keeps individual entries, so it can answer percentile
// queries and filter by tag. All methods are safe for concurrent use.
type MetricsCollector struct {
	mu      sync.RWMutex
	config  CollectorConfig
	entries []MetricEntry           // every recorded entry, up to MaxMetrics
	current map[string]*MetricEntry // newest entry per name
	samples map[string][]float64    // raw histogram observations per name
}

// CollectorConfig configures a MetricsCollector.
type CollectorConfig struct {
	FlushInterval    int64 // seconds between automatic flushes
	MaxMetrics       int   // cap on stored entries
	EnableHistograms bool  // record histogram observations
}

// withDefaults fills in zero fields.
func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.MaxMetrics <= 0 {
		c.MaxMetrics = 10000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 60
	}
	return c
}

// MetricEntry is one recorded sample.
type MetricEntry struct {
	Name      string            // dotted metric name ("kzg.verify_ms")
	Value     float64           // observed value
	Tags      map[string]string // key-value labels, may be nil
	Timestamp int64             // unix seconds at recording time
	Type      string            // "gauge" or "histogram"
}

// clone returns a copy whose Tags map is independent of the original.
func (e MetricEntry) clone() MetricEntry {
	e.Tags = copyTags(e.Tags)
	return e
}

// NewMetricsCollector creates a collector with the given config. Zero
// config fields take defaults.
func NewMetricsCollector(config CollectorConfig) *MetricsCollector {
	return &MetricsCollector{
		config:  config.withDefaults(),
		entries: make([]MetricEntry, 0, 64),
		current: make(map[string]*MetricEntry),
		samples: make(map[string][]float64),
	}
}

// store appends e to the entry log if there is room and makes it the
// current entry for its name regardless. Callers hold mc.mu.
func (mc *MetricsCollector) store(e MetricEntry) {
	if len(mc.entries) < mc.config.MaxMetrics {
		mc.entries = append(mc.entries, e)
	}
	cp := e
	mc.current[e.Name] = &cp
}

// Record stores a gauge-typed sample with optional tags.
func (mc *MetricsCollector) Record(name string, value float64, tags map[string]string) {
	e := MetricEntry{
		Name:      name,
		Value:     value,
		Tags:      copyTags(tags),
		Timestamp: time.Now().Unix(),
		Type:      "gauge",
	}

	mc.mu.Lock()
	mc.store(e)
	mc.mu.Unlock()
}

// RecordHistogram stores a histogram observation. It is a no-op unless
// EnableHistograms is set.
func (mc *MetricsCollector) RecordHistogram(name string, value float64) {
	if !mc.config.EnableHistograms {
		return
	}
	e := MetricEntry{
		Name:      name,
		Value:     value,
		Timestamp: time.Now().Unix(),
		Type:      "histogram",
	}

	mc.mu.Lock()
	mc.store(e)
	mc.samples[name] = append(mc.samples[name], value)
	mc.mu.Unlock()
}

// Get returns the newest entry recorded under name, or nil if there is
// none. The result is a copy; mutating it does not affect the store.
func (mc *MetricsCollector) Get(name string) *MetricEntry {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	e, ok := mc.current[name]
	if !ok {
		return nil
	}
	cp := e.clone()
	return &cp
}

// GetAll returns a copy of every stored entry.
func (mc *MetricsCollector) GetAll() []MetricEntry {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]MetricEntry, len(mc.entries))
	for i, e := range mc.entries {
		out[i] = e.clone()
	}
	return out
}

// GetByTag returns copies of every entry whose Tags[key] equals value.
func (mc *MetricsCollector) GetByTag(key, value string) []MetricEntry {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var out []MetricEntry
	for _, e := range mc.entries {
		if e.Tags != nil && e.Tags[key] == value {
			out = append(out, e.clone())
		}
	}
	return out
}

// Flush returns every stored entry and resets the collector.
func (mc *MetricsCollector) Flush() []MetricEntry {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	out := make([]MetricEntry, len(mc.entries))
	for i, e := range mc.entries {
		out[i] = e.clone()
	}
	mc.entries = make([]MetricEntry, 0, 64)
	mc.current = make(map[string]*MetricEntry)
	mc.samples = make(map[string][]float64)
	return out
}

// Summary maps every metric name to its newest value.
func (mc *MetricsCollector) Summary() map[string]float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]float64, len(mc.current))
	for name, e := range mc.current {
		out[name] = e.Value
	}
	return out
}

// HistogramPercentile computes the pct percentile (0 to 100) over the
// raw observations recorded under name. It returns 0 when there are
// none, including when histograms are disabled.
func (mc *MetricsCollector) HistogramPercentile(name string, pct float64) float64 {
	mc.mu.RLock()
	vals := mc.samples[name]
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	mc.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Float64s(sorted)
	return percentileOf(sorted, pct)
}

// percentileOf reads the pct percentile from an ascending slice,
// interpolating linearly between the two straddling ranks.
func percentileOf(sorted []float64, pct float64) float64 {
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := pct / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// MetricCount reports the number of stored entries.
func (mc *MetricsCollector) MetricCount() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.entries)
}

// copyTags returns an independent copy of a tag map, preserving nil.
func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	return cp
}
