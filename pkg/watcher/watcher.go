// Package watcher drives the per-frame processing contract against a frame
// source. In asynchronous mode a watcher owns one background goroutine that
// chases a shared frame buffer's write cursor, skipping frames it cannot
// keep pace with; in synchronous mode a Runner pulls frames one at a time on
// the caller's goroutine. Either way every kept frame flows through the same
// contract: telemetry, rolling FPS, diagnostic overlay, then the detector
// variant, with events forwarded to the tracker.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"floorwatch/internal/log"
	"floorwatch/pkg/detect"
	"floorwatch/pkg/render"
	"floorwatch/pkg/track"
	"floorwatch/pkg/video"
)

// ErrNoBuffer is returned by Start when the watcher was built without a
// frame buffer (synchronous-only use).
var ErrNoBuffer = errors.New("watcher has no frame buffer")

// Config holds tunable watcher parameters.
type Config struct {
	// Name identifies the watcher in logs, overlays and liveness signals.
	Name string

	// PollInterval bounds the wait when the local cursor has caught up to
	// the write cursor and no new-frame signal arrives.
	PollInterval time.Duration

	// HeartbeatInterval is the wall-clock period of the liveness signal.
	HeartbeatInterval time.Duration

	// FPSWindow is the number of processed frames per FPS measurement.
	FPSWindow int
}

// DefaultConfig returns the recommended watcher configuration.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		PollInterval:      5 * time.Millisecond,
		HeartbeatInterval: time.Minute,
		FPSWindow:         FPSWindow,
	}
}

// Watcher consumes frames from a buffer and feeds them through a detector.
// Each watcher owns its own cursor, so several watchers can observe one
// buffer independently. Lifecycle: Start spawns exactly one goroutine; Stop
// cancels it and joins, guaranteeing zero further processing on return. A
// detector failure is fail-stop: the loop logs it and terminates, and is
// never resumed; restart policy belongs to the caller.
type Watcher struct {
	cfg    Config
	buf    *video.Buffer
	det    detect.Detector
	logger *slog.Logger

	sink    render.Sink
	tracker track.Tracker

	// OnHeartbeat, if set, receives each liveness signal in addition to the
	// log. Called from the watcher goroutine; must not block.
	OnHeartbeat func(name string, frameCount uint64)

	// OnEvents, if set, receives each non-empty detection batch. Called from
	// the processing goroutine; must not block.
	OnEvents func(name string, events []detect.Event)

	frameIndex int
	prevTS     time.Time
	fps        *FPSCounter

	processed atomic.Uint64
	lastDelta atomic.Int64  // nanoseconds between the last two processed frames
	fpsBits   atomic.Uint64 // last FPS value, readable off-thread

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}

	markerColor color.RGBA
	textColor   color.RGBA
}

// New creates a watcher over buf using the given detector. buf may be nil
// for synchronous-only use through a Runner.
func New(cfg Config, buf *video.Buffer, det detect.Detector) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Minute
	}
	if cfg.FPSWindow < 1 {
		cfg.FPSWindow = FPSWindow
	}
	return &Watcher{
		cfg:         cfg,
		buf:         buf,
		det:         det,
		logger:      log.With("watcher", cfg.Name),
		prevTS:      time.Now(),
		fps:         NewFPSCounter(cfg.FPSWindow, time.Now()),
		markerColor: color.RGBA{R: 10, G: 40, B: 200},
		textColor:   color.RGBA{R: 150, G: 120, B: 50},
	}
}

// SetSink attaches a rendering sink. Sink failures are logged and never
// abort the loop.
func (w *Watcher) SetSink(s render.Sink) { w.sink = s }

// SetTracker attaches the downstream tracker receiving each processed
// frame's events.
func (w *Watcher) SetTracker(t track.Tracker) { w.tracker = t }

// Name returns the watcher name.
func (w *Watcher) Name() string { return w.cfg.Name }

// Running reports whether the lifecycle goroutine is active.
func (w *Watcher) Running() bool { return w.running.Load() }

// Processed returns the number of frames this watcher has fed through the
// per-frame contract. In asynchronous mode this can lag the buffer's
// cumulative count because skipped frames are never processed.
func (w *Watcher) Processed() uint64 { return w.processed.Load() }

// FPS returns the most recent rolling throughput measurement.
func (w *Watcher) FPS() float64 { return math.Float64frombits(w.fpsBits.Load()) }

// LastDelta returns the capture-time gap between the last two processed
// frames. Telemetry only.
func (w *Watcher) LastDelta() time.Duration {
	return time.Duration(w.lastDelta.Load())
}

// Start launches the lifecycle goroutine. The local cursor starts aligned
// with the buffer's current write cursor, so only frames written after
// Start are observed. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf == nil {
		return ErrNoBuffer
	}
	if w.running.Load() {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.frameIndex = w.buf.WriteIndex()
	w.running.Store(true)
	go w.watch(ctx)
	return nil
}

// Stop terminates the lifecycle goroutine and blocks until it has exited.
// No frame is processed after Stop returns. Safe to call on a stopped or
// never-started watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	w.running.Store(false)
	cancel()
	<-done
	w.logger.Info("stopped")
}

// watch is the lifecycle loop: drain newly written slots, then wait for a
// new-frame signal, a poll timeout, a heartbeat tick or cancellation.
func (w *Watcher) watch(ctx context.Context) {
	defer close(w.done)
	defer w.running.Store(false)

	w.logger.Info("running")
	w.prevTS = time.Now()

	heartbeat := time.NewTicker(w.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for w.running.Load() {
		if err := w.catchUp(); err != nil {
			// Detector state is untrustworthy after a failure; fail stop
			// rather than feed it more frames.
			w.logger.Error("frame processing failed, terminating watcher", "error", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-w.buf.Wait():
		case <-time.After(w.cfg.PollInterval):
		case <-heartbeat.C:
			count := w.buf.FrameCount()
			w.logger.Info("heartbeat", "frame_count", count)
			if w.OnHeartbeat != nil {
				w.OnHeartbeat(w.cfg.Name, count)
			}
		}
	}
}

// catchUp advances the local cursor toward the write cursor one slot at a
// time, processing every non-empty slot it lands on. A consumer lapped by
// the producer cycles through the ring quickly and loses the overwritten
// frames; it never rewinds and never jumps more than one slot per step.
func (w *Watcher) catchUp() error {
	for w.frameIndex != w.buf.WriteIndex() && w.running.Load() {
		w.frameIndex = (w.frameIndex + 1) % w.buf.Capacity()

		frame := w.buf.At(w.frameIndex)
		if frame == nil {
			// Buffer not warmed up yet.
			continue
		}

		// The pin from At keeps the frame's pixels alive even if the
		// producer laps this slot mid-read.
		processed, _, err := w.ProcessFrame(frame.Timestamp, frame.Mat)
		frame.Release()
		if err != nil {
			return fmt.Errorf("slot %d: %w", w.frameIndex, err)
		}
		w.publish(processed)
		processed.Close()
	}
	return nil
}

// ProcessFrame applies the per-frame contract to one frame: capture-gap
// telemetry, rolling FPS, the diagnostic overlay stamped onto a copy, then
// the detector variant, whose events are forwarded to the tracker. The
// returned Mat is owned by the caller. The event slice is never nil.
func (w *Watcher) ProcessFrame(ts time.Time, frame gocv.Mat) (gocv.Mat, []detect.Event, error) {
	w.lastDelta.Store(int64(ts.Sub(w.prevTS)))
	w.prevTS = ts

	fps := w.fps.Tick(time.Now())
	w.fpsBits.Store(math.Float64bits(fps))

	work := frame.Clone()
	gocv.Circle(&work, image.Pt(8, 12), 4, w.markerColor, 2)
	text := fmt.Sprintf("%s %.1f FPS", w.cfg.Name, fps)
	gocv.PutText(&work, text, image.Pt(17, 16), gocv.FontHersheySimplex, 0.5, w.textColor, 1)

	processed, events, err := w.det.Process(ts, work)
	if err != nil {
		work.Close()
		return gocv.Mat{}, nil, fmt.Errorf("detector %s: %w", w.det.Name(), err)
	}
	if events == nil {
		events = []detect.Event{}
	}
	w.processed.Add(1)

	if w.tracker != nil {
		w.tracker.Update(processed, events)
		w.tracker.Detect(processed)
	}
	if w.OnEvents != nil && len(events) > 0 {
		w.OnEvents(w.cfg.Name, events)
	}

	return processed, events, nil
}

// publish hands a processed frame to the rendering sink, if any. Rendering
// is best-effort and never aborts the loop.
func (w *Watcher) publish(frame gocv.Mat) {
	if w.sink == nil {
		return
	}
	if err := w.sink.Publish(frame); err != nil {
		w.logger.Warn("render sink failed", "error", err)
	}
}
