// Package video provides the frame model shared by the whole pipeline: a
// timestamped Frame, the circular Buffer a producer fills and watchers
// drain, and the capture Source/Producer pair that feeds it.
package video

import (
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a single captured video frame paired with its capture timestamp.
// A frame is produced once and treated as read-only by every consumer;
// anything that wants to draw on it must clone the Mat first.
//
// Frames are reference counted because the Mat wraps a native pixel buffer:
// the buffer may evict a frame while a consumer is still reading it, so the
// pixels must stay alive until the last holder releases its reference.
type Frame struct {
	Timestamp time.Time
	Mat       gocv.Mat

	refs atomic.Int32
}

// NewFrame wraps a Mat and its capture time. The frame takes ownership of
// the Mat, holding the initial reference; Release (or Close) drops it.
func NewFrame(ts time.Time, mat gocv.Mat) *Frame {
	f := &Frame{Timestamp: ts, Mat: mat}
	f.refs.Store(1)
	return f
}

// retain adds a reference, failing if the last one is already gone.
func (f *Frame) retain() bool {
	for {
		n := f.refs.Load()
		if n <= 0 {
			return false
		}
		if f.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. The final release frees the pixel buffer;
// the Mat must not be touched afterwards.
func (f *Frame) Release() {
	if f.refs.Add(-1) == 0 {
		f.Mat.Close()
	}
}

// Close releases the creator's reference.
func (f *Frame) Close() {
	f.Release()
}
