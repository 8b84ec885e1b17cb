package detect

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// MotionConfig holds tunable parameters for the frame-differencing detector.
type MotionConfig struct {
	// Threshold is the per-pixel difference threshold as a fraction of the
	// full intensity range.
	Threshold float64

	// MinArea is the minimum contour area in pixels to report as motion.
	MinArea float64

	// Memory is the blend weight of the newest frame into the decaying
	// reference frame. Higher values adapt faster and forget sooner.
	Memory float64

	// BlurSize and DilateSize are the Gaussian blur and dilation kernel
	// edge lengths.
	BlurSize   int
	DilateSize int
}

// DefaultMotionConfig returns the tuning used by the floor demos.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Threshold:  0.04,
		MinArea:    1600,
		Memory:     0.1,
		BlurSize:   11,
		DilateSize: 19,
	}
}

// Motion detects moving regions by differencing each frame against a
// decaying reference frame. The first frame only seeds the reference and
// reports no events.
type Motion struct {
	cfg    MotionConfig
	ref    gocv.Mat // decaying grayscale reference; empty until seeded
	kernel gocv.Mat
	boxCol color.RGBA
}

// NewMotion creates a motion-difference detector.
func NewMotion(cfg MotionConfig) *Motion {
	return &Motion{
		cfg:    cfg,
		ref:    gocv.NewMat(),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(cfg.DilateSize, cfg.DilateSize)),
		boxCol: color.RGBA{R: 0, G: 215, B: 255},
	}
}

// Name implements Detector.
func (m *Motion) Name() string { return "motion" }

// Process implements Detector.
func (m *Motion) Process(ts time.Time, frame gocv.Mat) (gocv.Mat, []Event, error) {
	events := []Event{}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	gocv.GaussianBlur(gray, &gray, image.Pt(m.cfg.BlurSize, m.cfg.BlurSize), 0, 0, gocv.BorderDefault)

	if m.ref.Empty() {
		m.ref = gray.Clone()
		return frame, events, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, m.ref, &diff)
	gocv.Threshold(diff, &diff, float32(255*m.cfg.Threshold), 255, gocv.ThresholdBinary)
	gocv.Dilate(diff, &diff, m.kernel)

	contours := gocv.FindContours(diff, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	cols := float64(frame.Cols())
	rows := float64(frame.Rows())

	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < m.cfg.MinArea {
			continue
		}
		rect := gocv.BoundingRect(c)
		gocv.Rectangle(&frame, rect, m.boxCol, 2)
		events = append(events, Event{
			Label:      "motion",
			X:          float64(rect.Min.X) / cols,
			Y:          float64(rect.Min.Y) / rows,
			W:          float64(rect.Dx()) / cols,
			H:          float64(rect.Dy()) / rows,
			Confidence: 1.0,
		})
	}

	// Fold the new frame into the reference so stationary objects fade out.
	gocv.AddWeighted(gray, m.cfg.Memory, m.ref, 1-m.cfg.Memory, 0, &m.ref)

	return frame, events, nil
}

// Close releases detector state.
func (m *Motion) Close() error {
	m.ref.Close()
	m.kernel.Close()
	return nil
}
