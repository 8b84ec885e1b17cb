package watcher

import (
	"math"
	"testing"
	"time"
)

func TestFPSCounterWindowMath(t *testing.T) {
	const window = 20
	interval := 50 * time.Millisecond // 20 FPS

	start := time.Unix(1000, 0)
	c := NewFPSCounter(window, start)

	// Before the first window completes the rate is still 0.
	now := start
	for i := 0; i < window-1; i++ {
		now = now.Add(interval)
		c.Tick(now)
	}
	if got := c.FPS(); got != 0 {
		t.Errorf("FPS() mid-window = %v, want 0", got)
	}

	// Completing the window yields K / (K * T).
	now = now.Add(interval)
	got := c.Tick(now)
	want := float64(window) / (float64(window) * interval.Seconds())
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("FPS after first window = %v, want %v", got, want)
	}
}

func TestFPSCounterRetainsValueBetweenWindows(t *testing.T) {
	const window = 5
	interval := 100 * time.Millisecond

	start := time.Unix(1000, 0)
	c := NewFPSCounter(window, start)

	now := start
	for i := 0; i < window; i++ {
		now = now.Add(interval)
		c.Tick(now)
	}
	first := c.FPS()
	if first == 0 {
		t.Fatal("FPS after first window = 0, want non-zero")
	}

	// Mid-way through the second window, fed at a different rate, the value
	// is still the first window's measurement.
	for i := 0; i < window-1; i++ {
		now = now.Add(interval / 2)
		if got := c.Tick(now); got != first {
			t.Errorf("FPS mid second window = %v, want retained %v", got, first)
		}
	}

	// The next tick closes the second window and recomputes.
	now = now.Add(interval / 2)
	second := c.Tick(now)
	want := float64(window) / (float64(window) * (interval / 2).Seconds())
	if math.Abs(second-want) > 1e-9 {
		t.Errorf("FPS after second window = %v, want %v", second, want)
	}
}

func TestFPSCounterOnlyUpdatesAtWindowMultiples(t *testing.T) {
	const window = 4
	start := time.Unix(1000, 0)
	c := NewFPSCounter(window, start)

	now := start
	var values []float64
	for i := 1; i <= 12; i++ {
		now = now.Add(250 * time.Millisecond)
		values = append(values, c.Tick(now))
	}

	for i, v := range values {
		tick := i + 1
		if tick%window != 0 {
			// Non-multiple ticks must repeat the previous value.
			var prev float64
			if i > 0 {
				prev = values[i-1]
			}
			if v != prev {
				t.Errorf("tick %d FPS = %v, want retained %v", tick, v, prev)
			}
		}
	}
	if values[3] != 4.0 || values[7] != 4.0 || values[11] != 4.0 {
		t.Errorf("window-multiple values = %v, %v, %v, want 4.0 each",
			values[3], values[7], values[11])
	}
}
