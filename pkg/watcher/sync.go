package watcher

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"floorwatch/internal/log"
	"floorwatch/pkg/render"
	"floorwatch/pkg/store"
	"floorwatch/pkg/video"
)

// RunnerConfig holds tunable parameters for synchronous processing.
type RunnerConfig struct {
	// SkipCount discards this many frames before keeping one, so the kept
	// cadence is one frame in every SkipCount+1. Tuning constants elsewhere
	// were chosen against exactly this cadence; 0 keeps every frame.
	// Discarded frames never reach the per-frame contract, so they leave no
	// trace in FPS state or event history.
	SkipCount int

	// ScaleFactor uniformly rescales kept frames before processing.
	// 1.0 (or 0) leaves them untouched.
	ScaleFactor float64

	// Delay is an optional per-frame sleep capping apparent playback rate.
	Delay time.Duration
}

// Runner drives the per-frame contract synchronously: no producer thread,
// frames pulled one at a time from a finite source on the caller's
// goroutine. Used for movie files and other bounded sources.
type Runner struct {
	cfg   RunnerConfig
	w     *Watcher
	src   video.Source
	saver *store.Saver
	sinks []render.Sink

	skip uint64
	read uint64
}

// NewRunner creates a synchronous driver feeding frames from src through w.
func NewRunner(cfg RunnerConfig, w *Watcher, src video.Source) *Runner {
	return &Runner{cfg: cfg, w: w, src: src}
}

// SetSaver attaches a capture saver; frames with a non-empty event list are
// persisted (raw frame, annotated frame and event metadata).
func (r *Runner) SetSaver(s *store.Saver) { r.saver = s }

// AddSink attaches an output sink for processed frames (window, movie
// writer, MJPEG stream). Sink failures are logged and never stop the run.
func (r *Runner) AddSink(s render.Sink) {
	r.sinks = append(r.sinks, s)
}

// FramesRead returns the number of frames pulled from the source, kept or
// not.
func (r *Runner) FramesRead() uint64 { return r.read }

// Run processes the source until it is exhausted, the context is cancelled,
// or the detector fails. Exhaustion is a clean termination; a detector
// failure is returned as an error and the run is never resumed.
func (r *Runner) Run(ctx context.Context) error {
	logger := log.With("watcher", r.w.Name())
	logger.Info("synchronous run starting", "skip_count", r.cfg.SkipCount)

	mat := gocv.NewMat()
	defer mat.Close()
	scaled := gocv.NewMat()
	defer scaled.Close()

	for {
		select {
		case <-ctx.Done():
			logger.Info("synchronous run interrupted", "frames_read", r.read, "processed", r.w.Processed())
			return ctx.Err()
		default:
		}

		if !r.src.Read(&mat) {
			logger.Info("source exhausted", "frames_read", r.read, "processed", r.w.Processed())
			return nil
		}
		if mat.Empty() {
			continue
		}
		r.read++

		// Frame-skip runs before any telemetry or processing: a discarded
		// frame must never influence FPS or event history.
		if r.skip < uint64(r.cfg.SkipCount) {
			r.skip++
			continue
		}
		r.skip = 0

		frame := mat
		if r.cfg.ScaleFactor > 0 && r.cfg.ScaleFactor != 1.0 {
			gocv.Resize(mat, &scaled, image.Point{}, r.cfg.ScaleFactor, r.cfg.ScaleFactor, gocv.InterpolationLinear)
			frame = scaled
		}

		processed, events, err := r.w.ProcessFrame(time.Now(), frame)
		if err != nil {
			logger.Error("frame processing failed, terminating run", "error", err)
			return fmt.Errorf("frame %d: %w", r.read, err)
		}

		if r.saver != nil && len(events) > 0 {
			if err := r.saver.Save(r.w.Processed(), frame, processed, events); err != nil {
				logger.Warn("capture save failed", "error", err)
			}
		}

		for _, sink := range r.sinks {
			if err := sink.Publish(processed); err != nil {
				logger.Warn("render sink failed", "error", err)
			}
		}
		processed.Close()

		if r.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				logger.Info("synchronous run interrupted", "frames_read", r.read, "processed", r.w.Processed())
				return ctx.Err()
			case <-time.After(r.cfg.Delay):
			}
		}
	}
}
