package metrics

import (
	"encoding/json"
	"runtime"
	"sync"
	"time"
)

// MemStats is the subset of runtime allocator counters the engine
// exports.
type MemStats struct {
	// HeapAlloc is the bytes of live heap objects.
	HeapAlloc uint64 `json:"heapAlloc"`

	// TotalAlloc is the cumulative bytes ever allocated on the heap.
	TotalAlloc uint64 `json:"totalAlloc"`

	// Sys is the total bytes obtained from the operating system.
	Sys uint64 `json:"sys"`

	// NumGC is the number of completed GC cycles.
	NumGC uint64 `json:"numGC"`
}

// readMem reads the exported counters from the runtime.
func readMem() MemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemStats{
		HeapAlloc:  ms.HeapAlloc,
		TotalAlloc: ms.TotalAlloc,
		Sys:        ms.Sys,
		NumGC:      uint64(ms.NumGC),
	}
}

// SystemMetrics tracks process-level health: goroutine count, memory,
// GC activity, and CPU utilisation. Long-running commands Collect on a
// timer and print the JSON export next to the engine's own instruments.
type SystemMetrics struct {
	startTime time.Time
	cpu       *CPUTracker

	mu sync.RWMutex
	// Snapshot taken by the last Collect.
	mem         MemStats
	goroutines  int
	lastCollect time.Time
}

// NewSystemMetrics starts tracking from now, with a seeded CPU
// baseline.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{startTime: time.Now(), cpu: NewCPUTracker()}
}

// Collect refreshes the cached snapshot and takes a CPU sample. Run it
// periodically; the accessors below then serve from the cache.
func (sm *SystemMetrics) Collect() {
	mem := readMem()
	sm.cpu.RecordCPU()

	sm.mu.Lock()
	sm.mem = mem
	sm.goroutines = runtime.NumGoroutine()
	sm.lastCollect = time.Now()
	sm.mu.Unlock()
}

// GoRoutineCount reports the goroutine count from the last Collect, or
// a live reading when Collect has not run yet.
func (sm *SystemMetrics) GoRoutineCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.goroutines == 0 {
		return runtime.NumGoroutine()
	}
	return sm.goroutines
}

// MemoryUsage reports the allocator counters from the last Collect, or
// a live reading when Collect has not run yet.
func (sm *SystemMetrics) MemoryUsage() MemStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.lastCollect.IsZero() {
		return readMem()
	}
	return sm.mem
}

// CPUUsage reports the process CPU percentage measured between the two
// most recent Collect calls.
func (sm *SystemMetrics) CPUUsage() float64 { return sm.cpu.Usage() }

// UptimeSeconds reports the seconds elapsed since construction.
func (sm *SystemMetrics) UptimeSeconds() float64 {
	return time.Since(sm.startTime).Seconds()
}

// LastCollectTime reports when Collect last ran, or the zero time if it
// never has.
func (sm *SystemMetrics) LastCollectTime() time.Time {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.lastCollect
}

// processSnapshot is the JSON shape produced by ExportJSON.
type processSnapshot struct {
	Goroutines  int      `json:"goroutines"`
	Memory      MemStats `json:"memory"`
	UptimeSec   float64  `json:"uptimeSeconds"`
	CPUPercent  float64  `json:"cpuPercent"`
	CollectedAt string   `json:"collectedAt"`
}

// ExportJSON runs a fresh Collect and serialises the snapshot.
func (sm *SystemMetrics) ExportJSON() ([]byte, error) {
	sm.Collect()

	sm.mu.RLock()
	snap := processSnapshot{
		Goroutines:  sm.goroutines,
		Memory:      sm.mem,
		UptimeSec:   time.Since(sm.startTime).Seconds(),
		CPUPercent:  sm.cpu.Usage(),
		CollectedAt: time.Now().UTC().Format(time.RFC3339),
	}
	sm.mu.RUnlock()

	return json.Marshal(snap)
}

// GoVersion reports the Go runtime version.
func GoVersion() string { return runtime.Version() }

// NumCPU reports the logical CPU count.
func NumCPU() int { return runtime.NumCPU() }

// GOARCH reports the build architecture.
func GOARCH() string { return runtime.GOARCH }

// GOOS reports the build operating system.
func GOOS() string { return runtime.GOOS }
