package watcher

import "time"

// FPSWindow is the default number of processed frames per FPS measurement
// window.
const FPSWindow = 20

// FPSCounter measures throughput over a rolling window of processed frames.
// The rate is recomputed once per window and retained between windows, so a
// reader never observes a reset-to-zero value mid-window.
type FPSCounter struct {
	window int
	count  int
	mark   time.Time
	fps    float64
}

// NewFPSCounter creates a counter measuring over the given window size,
// anchored at start.
func NewFPSCounter(window int, start time.Time) *FPSCounter {
	if window < 1 {
		window = FPSWindow
	}
	return &FPSCounter{window: window, mark: start}
}

// Tick records one processed frame at the given instant and returns the
// current rate. The rate is 0 until the first window completes.
func (c *FPSCounter) Tick(now time.Time) float64 {
	c.count++
	if c.count == c.window {
		if elapsed := now.Sub(c.mark).Seconds(); elapsed > 0 {
			c.fps = float64(c.window) / elapsed
		}
		c.mark = now
		c.count = 0
	}
	return c.fps
}

// FPS returns the most recently computed rate.
func (c *FPSCounter) FPS() float64 {
	return c.fps
}
