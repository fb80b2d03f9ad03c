// Package workpool implements a work-stealing pool for row-parallel grid
// operations (committing, opening, reconstructing). Each worker goroutine
// maintains a local deque of tasks; when idle, workers steal from other
// workers' deques. Rows are independent units, so tasks never share mutable
// state and the pool needs no synchronization beyond the deques themselves.
package workpool

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Task is a unit of work, typically one row of a grid. Cost is an estimated
// relative expense used by SubmitWeighted for scheduling heuristics; rows on
// the interpolation fallback path cost far more than direct-transform rows.
type Task struct {
	// ID identifies the task (typically the row index).
	ID int
	// Cost is the estimated relative cost for weighted scheduling.
	Cost uint64
	// Run is the function to execute. A non-nil return is counted as a
	// failure; result delivery is the closure's own business.
	Run func() error
}

// taskDeque is a double-ended queue supporting Push/Pop from the back (owner)
// and Steal from the front (thieves). Uses a mutex for correctness; the
// contention is acceptable because steals are infrequent relative to local
// pops.
type taskDeque struct {
	mu    sync.Mutex
	items []*Task
}

// Push adds a task to the back (owner end) of the deque.
func (d *taskDeque) Push(task *Task) {
	d.mu.Lock()
	d.items = append(d.items, task)
	d.mu.Unlock()
}

// Pop removes and returns a task from the back (owner end).
func (d *taskDeque) Pop() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	n := len(d.items) - 1
	task := d.items[n]
	d.items = d.items[:n]
	return task, true
}

// Steal removes and returns a task from the front (thief end).
func (d *taskDeque) Steal() (*Task, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil, false
	}
	task := d.items[0]
	d.items = d.items[1:]
	return task, true
}

// Len returns the current deque size.
func (d *taskDeque) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Stats tracks performance counters for the pool.
type Stats struct {
	TasksExecuted atomic.Uint64
	TasksStolen   atomic.Uint64
	TasksFailed   atomic.Uint64
	IdleNanos     atomic.Int64
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() (executed, stolen, failed uint64, idle time.Duration) {
	return s.TasksExecuted.Load(), s.TasksStolen.Load(),
		s.TasksFailed.Load(), time.Duration(s.IdleNanos.Load())
}

// Pool is a worker pool where each worker has its own deque. Workers first
// process local tasks, then attempt to steal from peers. The intended shape
// is fork-join: submit every row task, call Run, and read results out of the
// closures afterwards.
type Pool struct {
	workers int
	deques  []*taskDeque
	stats   Stats
}

// New creates a pool with the given number of worker goroutines.
// If workers <= 0, defaults to runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	deques := make([]*taskDeque, workers)
	for i := range deques {
		deques[i] = &taskDeque{}
	}
	return &Pool{
		workers: workers,
		deques:  deques,
	}
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Stats returns the pool's performance counters.
func (p *Pool) Stats() *Stats { return &p.stats }

// Submit distributes tasks across worker deques round-robin.
func (p *Pool) Submit(tasks []*Task) {
	for i, task := range tasks {
		p.deques[i%p.workers].Push(task)
	}
}

// SubmitWeighted distributes tasks to the deque with the smallest estimated
// load, achieving better balance when task costs are heterogeneous.
func (p *Pool) SubmitWeighted(tasks []*Task) {
	loads := make([]uint64, p.workers)
	for _, task := range tasks {
		minIdx := 0
		for j := 1; j < p.workers; j++ {
			if loads[j] < loads[minIdx] {
				minIdx = j
			}
		}
		p.deques[minIdx].Push(task)
		loads[minIdx] += task.Cost
	}
}

// Run executes all submitted tasks in parallel using the work-stealing
// strategy and blocks until the deques drain. Cancellation is cooperative at
// task granularity: once ctx is done, workers stop picking up tasks but let
// the in-flight ones finish. Returns ctx.Err() if the run was cut short.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.workerLoop(ctx, workerID)
		}(w)
	}
	wg.Wait()
	return ctx.Err()
}

// RunTasks submits and runs tasks in one call.
func (p *Pool) RunTasks(ctx context.Context, tasks []*Task) error {
	p.Submit(tasks)
	return p.Run(ctx)
}

// Pending returns the sum of queued tasks across all deques.
func (p *Pool) Pending() int {
	total := 0
	for _, d := range p.deques {
		total += d.Len()
	}
	return total
}

// workerLoop processes the local deque, then steals from other workers.
func (p *Pool) workerLoop(ctx context.Context, workerID int) {
	myDeque := p.deques[workerID]

	for {
		if ctx.Err() != nil {
			return
		}

		// Phase 1: drain own deque.
		task, ok := myDeque.Pop()
		if ok {
			p.executeTask(task, false)
			continue
		}

		// Phase 2: attempt to steal from other workers.
		idleStart := time.Now()
		stolen := false
		for i := 1; i < p.workers; i++ {
			victimID := (workerID + i) % p.workers
			task, ok = p.deques[victimID].Steal()
			if ok {
				p.stats.IdleNanos.Add(time.Since(idleStart).Nanoseconds())
				p.executeTask(task, true)
				stolen = true
				break
			}
		}

		if !stolen {
			// No work anywhere -- record idle time and exit.
			p.stats.IdleNanos.Add(time.Since(idleStart).Nanoseconds())
			return
		}
	}
}

// executeTask runs a single task and updates the counters.
func (p *Pool) executeTask(task *Task, wasStolen bool) {
	err := task.Run()
	p.stats.TasksExecuted.Add(1)
	if err != nil {
		p.stats.TasksFailed.Add(1)
	}
	if wasStolen {
		p.stats.TasksStolen.Add(1)
	}
}
