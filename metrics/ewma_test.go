package metrics

import (
	"math"
	"testing"
)

// --- EWMA tests ---

func TestEWMAStartsAtZero(t *testing.T) {
	e := NewEWMA1()
	if got := e.Rate(); got != 0 {
		t.Fatalf("Rate() before any tick = %v, want 0", got)
	}
}

func TestEWMAFirstTickSeedsRate(t *testing.T) {
	e := NewEWMA1()
	e.Update(100)
	e.Tick()

	// 100 events over one 5s tick is 20 events/sec, adopted directly.
	if got := e.Rate(); math.Abs(got-20.0) > 0.001 {
		t.Fatalf("Rate() after first tick = %v, want 20.0", got)
	}
}

func TestEWMADecaysWhenIdle(t *testing.T) {
	e := NewEWMA1()
	e.Update(100)
	e.Tick()
	seeded := e.Rate()

	e.Tick()
	decayed := e.Rate()
	if decayed >= seeded {
		t.Fatalf("idle tick did not decay: %v -> %v", seeded, decayed)
	}
	if decayed <= 0 {
		t.Fatalf("Rate() decayed to %v, want > 0", decayed)
	}
}

func TestEWMAWindows(t *testing.T) {
	for _, tc := range []struct {
		name string
		e    *EWMA
	}{
		{"5min", NewEWMA5()},
		{"15min", NewEWMA15()},
	} {
		tc.e.Update(50)
		tc.e.Tick()
		if got := tc.e.Rate(); math.Abs(got-10.0) > 0.001 {
			t.Fatalf("%s Rate() after first tick = %v, want 10.0", tc.name, got)
		}
	}
}

func TestEWMAConvergesToSteadyRate(t *testing.T) {
	e := NewEWMA1()
	for i := 0; i < 12; i++ {
		e.Update(100)
		e.Tick()
	}

	// A steady 100 events per tick is 20/sec; one minute of ticks gets close.
	if got := e.Rate(); math.Abs(got-20.0) > 1.0 {
		t.Fatalf("Rate() after steady load = %v, want within 1.0 of 20.0", got)
	}
}

func TestStandardEWMACustomAlpha(t *testing.T) {
	e := StandardEWMA(0.5)
	e.Update(10)
	e.Tick()

	if got := e.Rate(); math.Abs(got-2.0) > 0.001 {
		t.Fatalf("Rate() = %v, want 2.0", got)
	}
}
