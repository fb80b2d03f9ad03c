package metrics

import (
	"fmt"
	"math"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrometheusConfig configures the scrape endpoint.
type PrometheusConfig struct {
	// Namespace is prepended to every metric name, so "dagrid" turns
	// "kzg.commits" into "dagrid_kzg_commits". Empty means no prefix.
	Namespace string
	// EnableRuntime adds Go runtime series (goroutines, heap, GC) to
	// the output.
	EnableRuntime bool
	// Path is the HTTP path to serve on. Empty means "/metrics".
	Path string
}

// DefaultPrometheusConfig returns the configuration the CLI commands
// use.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:     "dagrid",
		EnableRuntime: true,
		Path:          "/metrics",
	}
}

// CustomCollector produces extra metric lines on every scrape, for
// values that live outside the Registry.
type CustomCollector interface {
	Collect() []MetricLine
}

// MetricLine is one data point emitted by a CustomCollector.
type MetricLine struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// PrometheusExporter serves a Registry in the Prometheus text
// exposition format (version 0.0.4).
type PrometheusExporter struct {
	cfg      PrometheusConfig
	registry *Registry

	mu         sync.RWMutex
	collectors map[string]CustomCollector
}

// NewPrometheusExporter creates an exporter reading from registry.
func NewPrometheusExporter(registry *Registry, cfg PrometheusConfig) *PrometheusExporter {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	return &PrometheusExporter{
		cfg:        cfg,
		registry:   registry,
		collectors: make(map[string]CustomCollector),
	}
}

// RegisterCollector adds a named custom collector, replacing any
// previous collector under the same name.
func (pe *PrometheusExporter) RegisterCollector(name string, c CustomCollector) {
	pe.mu.Lock()
	pe.collectors[name] = c
	pe.mu.Unlock()
}

// UnregisterCollector removes a custom collector.
func (pe *PrometheusExporter) UnregisterCollector(name string) {
	pe.mu.Lock()
	delete(pe.collectors, name)
	pe.mu.Unlock()
}

// Handler returns an http.Handler serving the configured path.
// Requests to other paths get a 404, so the handler can be mounted as
// a server's root handler directly.
func (pe *PrometheusExporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(pe.cfg.Path, pe.serveScrape)
	return mux
}

// serveScrape answers one GET or HEAD with the full exposition page.
func (pe *PrometheusExporter) serveScrape(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Write([]byte(pe.render()))
}

// render assembles the exposition page: registry instruments first,
// then runtime series when enabled, then the custom collectors.
func (pe *PrometheusExporter) render() string {
	var b strings.Builder
	pe.writeRegistry(&b)
	if pe.cfg.EnableRuntime {
		pe.writeRuntime(&b)
	}
	pe.writeCollectors(&b)
	return b.String()
}

// header emits the HELP and TYPE comment lines for one series.
func header(b *strings.Builder, name, typ, help string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
}

// writeRegistry emits every registry instrument in name order. The HELP
// text carries the original dotted name.
func (pe *PrometheusExporter) writeRegistry(b *strings.Builder) {
	reg := pe.registry
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	for _, name := range sortedKeys(reg.counters) {
		pn := pe.promName(name)
		header(b, pn, "counter", name)
		fmt.Fprintf(b, "%s %d\n", pn, reg.counters[name].Value())
	}
	for _, name := range sortedKeys(reg.gauges) {
		pn := pe.promName(name)
		header(b, pn, "gauge", name)
		fmt.Fprintf(b, "%s %d\n", pn, reg.gauges[name].Value())
	}

	// Without buckets there is no native histogram representation, so
	// histograms and meters flatten to suffixed summary series.
	for _, name := range sortedKeys(reg.histograms) {
		h := reg.histograms[name]
		pn := pe.promName(name)
		header(b, pn, "summary", name)
		fmt.Fprintf(b, "%s_count %d\n", pn, h.Count())
		fmt.Fprintf(b, "%s_sum %s\n", pn, formatFloat(h.Sum()))
		if h.Count() > 0 {
			fmt.Fprintf(b, "%s_min %s\n", pn, formatFloat(h.Min()))
			fmt.Fprintf(b, "%s_max %s\n", pn, formatFloat(h.Max()))
			fmt.Fprintf(b, "%s_mean %s\n", pn, formatFloat(h.Mean()))
		}
	}
	for _, name := range sortedKeys(reg.meters) {
		m := reg.meters[name]
		pn := pe.promName(name)
		header(b, pn, "summary", name)
		fmt.Fprintf(b, "%s_count %d\n", pn, m.Count())
		fmt.Fprintf(b, "%s_rate1 %s\n", pn, formatFloat(m.Rate1()))
		fmt.Fprintf(b, "%s_rate5 %s\n", pn, formatFloat(m.Rate5()))
		fmt.Fprintf(b, "%s_rate_mean %s\n", pn, formatFloat(m.RateMean()))
	}
}

// writeRuntime emits the Go runtime series.
func (pe *PrometheusExporter) writeRuntime(b *strings.Builder) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	prefix := pe.cfg.Namespace
	if prefix != "" {
		prefix += "_"
	}

	lastGC := "0"
	if ms.LastGC > 0 {
		lastGC = formatFloat(float64(ms.LastGC) / 1e9)
	}

	rows := []struct {
		name, typ, help, value string
	}{
		{"go_goroutines", "gauge", "Number of live goroutines",
			strconv.Itoa(runtime.NumGoroutine())},
		{"go_threads", "gauge", "Current GOMAXPROCS setting",
			strconv.Itoa(runtime.GOMAXPROCS(0))},
		{"go_memstats_alloc_bytes", "gauge", "Bytes of allocated heap objects",
			strconv.FormatUint(ms.Alloc, 10)},
		{"go_memstats_alloc_bytes_total", "counter", "Cumulative bytes allocated",
			strconv.FormatUint(ms.TotalAlloc, 10)},
		{"go_memstats_sys_bytes", "gauge", "Bytes obtained from the OS",
			strconv.FormatUint(ms.Sys, 10)},
		{"go_memstats_heap_alloc_bytes", "gauge", "Bytes of allocated heap objects",
			strconv.FormatUint(ms.HeapAlloc, 10)},
		{"go_memstats_heap_inuse_bytes", "gauge", "Bytes in in-use heap spans",
			strconv.FormatUint(ms.HeapInuse, 10)},
		{"go_memstats_heap_objects", "gauge", "Number of allocated heap objects",
			strconv.FormatUint(ms.HeapObjects, 10)},
		{"go_memstats_stack_inuse_bytes", "gauge", "Bytes in stack spans",
			strconv.FormatUint(ms.StackInuse, 10)},
		{"go_gc_duration_seconds_count", "counter", "Completed GC cycles",
			strconv.FormatUint(uint64(ms.NumGC), 10)},
		{"go_gc_pause_total_seconds", "counter", "Cumulative GC pause seconds",
			formatFloat(float64(ms.PauseTotalNs) / 1e9)},
		{"go_gc_last_seconds", "gauge", "Unix time of the last GC",
			lastGC},
		{"process_start_time_seconds", "gauge", "Unix time the process started",
			formatFloat(float64(processStartTime.Unix()))},
	}
	for _, row := range rows {
		name := prefix + row.name
		header(b, name, row.typ, row.help)
		fmt.Fprintf(b, "%s %s\n", name, row.value)
	}
}

// writeCollectors invokes the custom collectors in name order. Collect
// runs outside the exporter lock so a slow collector cannot block
// registration.
func (pe *PrometheusExporter) writeCollectors(b *strings.Builder) {
	pe.mu.RLock()
	ordered := make([]CustomCollector, 0, len(pe.collectors))
	for _, name := range sortedKeys(pe.collectors) {
		ordered = append(ordered, pe.collectors[name])
	}
	pe.mu.RUnlock()

	for _, c := range ordered {
		for _, line := range c.Collect() {
			pn := pe.promName(line.Name)
			if len(line.Labels) > 0 {
				fmt.Fprintf(b, "%s{%s} %s\n", pn, formatLabels(line.Labels), formatFloat(line.Value))
			} else {
				fmt.Fprintf(b, "%s %s\n", pn, formatFloat(line.Value))
			}
		}
	}
}

// promName rewrites a dotted metric name into the Prometheus character
// set and applies the namespace prefix.
func (pe *PrometheusExporter) promName(name string) string {
	s := strings.ReplaceAll(name, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	if pe.cfg.Namespace == "" {
		return s
	}
	return pe.cfg.Namespace + "_" + s
}

// formatLabels renders a label map as key="value" pairs in key order.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}

// formatFloat renders a float the way the exposition format spells
// special values.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return fmt.Sprintf("%g", v)
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// processStartTime backs the process_start_time_seconds series.
var processStartTime = time.Now()
