package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// tickEvery is the cadence at which meters tick their moving averages.
// The alpha constants below assume this interval.
const tickEvery = 5 * time.Second

// EWMA tracks an exponentially weighted moving average of an event
// rate. Updates land in a pending bucket; each Tick folds the bucket
// into the average. Safe for concurrent use.
type EWMA struct {
	alpha   float64
	pending atomic.Int64

	mu     sync.Mutex
	rate   float64
	primed bool
}

// StandardEWMA creates an EWMA with an explicit smoothing factor.
func StandardEWMA(alpha float64) *EWMA {
	return &EWMA{alpha: alpha}
}

// NewEWMA1 creates the 1-minute average used by Meter.
func NewEWMA1() *EWMA { return StandardEWMA(alphaFor(1)) }

// NewEWMA5 creates the 5-minute average.
func NewEWMA5() *EWMA { return StandardEWMA(alphaFor(5)) }

// NewEWMA15 creates the 15-minute average.
func NewEWMA15() *EWMA { return StandardEWMA(alphaFor(15)) }

// alphaFor derives the smoothing factor for an averaging window of the
// given length in minutes, ticking every tickEvery.
func alphaFor(minutes float64) float64 {
	return 1 - math.Exp(-tickEvery.Seconds()/(minutes*60))
}

// Update adds n events to the pending bucket.
func (e *EWMA) Update(n int64) { e.pending.Add(n) }

// Tick folds the pending bucket into the average. The first tick seeds
// the rate directly rather than decaying from zero.
func (e *EWMA) Tick() {
	sample := float64(e.pending.Swap(0)) / tickEvery.Seconds()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.primed {
		e.rate = sample
		e.primed = true
		return
	}
	e.rate += e.alpha * (sample - e.rate)
}

// Rate reports the current average in events per second.
func (e *EWMA) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}
