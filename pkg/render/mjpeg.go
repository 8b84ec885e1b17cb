package render

import (
	"fmt"

	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"
)

// MJPEG publishes frames to an MJPEG stream that the web dashboard serves
// as a live view.
type MJPEG struct {
	stream *mjpeg.Stream
}

// NewMJPEG creates an MJPEG sink with a fresh stream.
func NewMJPEG() *MJPEG {
	return &MJPEG{stream: mjpeg.NewStream()}
}

// Stream returns the underlying stream for mounting on an HTTP route.
func (m *MJPEG) Stream() *mjpeg.Stream {
	return m.stream
}

// Publish JPEG-encodes the frame and pushes it to connected viewers.
func (m *MJPEG) Publish(frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("mjpeg: empty frame")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		return fmt.Errorf("mjpeg: encode frame: %w", err)
	}
	defer buf.Close()
	m.stream.UpdateJPEG(buf.GetBytes())
	return nil
}

// Close is a no-op; connected viewers simply stop receiving updates.
func (m *MJPEG) Close() error { return nil }
