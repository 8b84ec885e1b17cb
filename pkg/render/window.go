package render

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Window displays frames in an on-screen OpenCV window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens a named display window.
func NewWindow(name string) *Window {
	return &Window{win: gocv.NewWindow(name)}
}

// Publish shows the frame and pumps the GUI event loop for 1ms.
func (w *Window) Publish(frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("window: empty frame")
	}
	w.win.IMShow(frame)
	w.win.WaitKey(1)
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}
