package video

import (
	"errors"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

// ErrSourceClosed is returned by sources that have been closed.
var ErrSourceClosed = errors.New("video source closed")

// Source supplies raw frames one at a time. Read fills dst with the next
// frame and reports whether one was available; false means the source is
// exhausted (end of file) or closed.
type Source interface {
	Read(dst *gocv.Mat) bool
	Close() error
}

// CaptureSource reads frames from a camera device, video file or stream URL
// through OpenCV.
type CaptureSource struct {
	cap    *gocv.VideoCapture
	closed bool
}

// OpenSource opens a capture source. A purely numeric spec selects a camera
// device by index; anything else is treated as a file path or stream URL.
func OpenSource(spec string) (*CaptureSource, error) {
	var (
		cap *gocv.VideoCapture
		err error
	)
	if device, convErr := strconv.Atoi(spec); convErr == nil {
		cap, err = gocv.OpenVideoCapture(device)
	} else {
		cap, err = gocv.OpenVideoCapture(spec)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture %q: %w", spec, err)
	}
	return &CaptureSource{cap: cap}, nil
}

// Read fills dst with the next frame.
func (s *CaptureSource) Read(dst *gocv.Mat) bool {
	if s.closed {
		return false
	}
	return s.cap.Read(dst)
}

// Size returns the source frame dimensions as reported by the capture.
func (s *CaptureSource) Size() (width, height int) {
	return int(s.cap.Get(gocv.VideoCaptureFrameWidth)),
		int(s.cap.Get(gocv.VideoCaptureFrameHeight))
}

// FPS returns the nominal frame rate reported by the capture, or 0 when the
// source does not declare one.
func (s *CaptureSource) FPS() float64 {
	return s.cap.Get(gocv.VideoCaptureFPS)
}

// Close releases the capture.
func (s *CaptureSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cap.Close()
}
