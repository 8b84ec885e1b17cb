// Package render provides output sinks for processed frames. Sinks are
// best-effort by contract: callers log failures and keep going, so a broken
// display or encoder never stalls the processing loop.
package render

import "gocv.io/x/gocv"

// Sink receives processed frames for display, streaming or recording.
type Sink interface {
	Publish(frame gocv.Mat) error
	Close() error
}
