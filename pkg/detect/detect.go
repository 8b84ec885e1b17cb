// Package detect defines the per-frame detection contract and the detector
// variants that satisfy it: frame differencing (motion), DNN inference
// (neuralnet) and replay of a recorded event log (replay).
package detect

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// Event is one detector-reported item of interest in a frame. The bounding
// box is normalized to the frame dimensions so downstream consumers are
// independent of resolution.
type Event struct {
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Confidence float64 `json:"confidence"`
}

// Rect converts the normalized box to pixel coordinates for a frame of the
// given size.
func (e Event) Rect(cols, rows int) image.Rectangle {
	x := int(e.X * float64(cols))
	y := int(e.Y * float64(rows))
	return image.Rect(x, y, x+int(e.W*float64(cols)), y+int(e.H*float64(rows)))
}

// Center returns the normalized box center.
func (e Event) Center() (x, y float64) {
	return e.X + e.W/2, e.Y + e.H/2
}

// ClassMeta describes how one object class is labeled and rendered.
// VertOffset shifts the label anchor vertically as a fraction of the box
// height (negative values raise it above the box).
type ClassMeta struct {
	Label      string
	Color      color.RGBA
	VertOffset float64
}

// Detector is the capability every variant implements. Process receives the
// working copy of a frame (already carrying the diagnostic overlay), may
// draw on it or derive a new Mat from it, and returns the processed frame
// plus the detection events found in it. The returned event slice is always
// non-nil; empty means "no detections". The caller owns the returned Mat;
// a variant returning a Mat other than its input must release the input
// itself.
type Detector interface {
	Name() string
	Process(ts time.Time, frame gocv.Mat) (gocv.Mat, []Event, error)
	Close() error
}

// drawEvents renders event boxes and labels onto frame using the class
// metadata, falling back to a neutral color for unknown classes.
func drawEvents(frame *gocv.Mat, events []Event, classes map[int]ClassMeta) {
	cols, rows := frame.Cols(), frame.Rows()
	for _, e := range events {
		meta, ok := classes[e.ClassID]
		if !ok {
			meta = ClassMeta{Label: e.Label, Color: color.RGBA{R: 200, G: 200, B: 200}}
		}
		rect := e.Rect(cols, rows)
		gocv.Rectangle(frame, rect, meta.Color, 2)

		labelY := rect.Min.Y - 6 + int(meta.VertOffset*float64(rect.Dy()))
		if labelY < 12 {
			labelY = rect.Min.Y + 14
		}
		gocv.PutText(frame, meta.Label, image.Pt(rect.Min.X, labelY),
			gocv.FontHersheySimplex, 0.5, meta.Color, 1)
	}
}
