package watcher

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"floorwatch/pkg/detect"
	"floorwatch/pkg/video"
)

// stubDetector records calls and can be told to fail at a given call ordinal.
type stubDetector struct {
	mu         sync.Mutex
	calls      int
	timestamps []time.Time
	cols       []int
	failAt     int // 1-based call ordinal to fail at; 0 = never
	nilEvents  bool

	// events, when set, is returned verbatim from every call.
	events []detect.Event
}

func (d *stubDetector) Name() string { return "stub" }

func (d *stubDetector) Process(ts time.Time, frame gocv.Mat) (gocv.Mat, []detect.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.timestamps = append(d.timestamps, ts)
	d.cols = append(d.cols, frame.Cols())
	if d.failAt != 0 && d.calls == d.failAt {
		return frame, nil, errors.New("synthetic detector failure")
	}
	if d.nilEvents {
		return frame, nil, nil
	}
	if d.events != nil {
		return frame, d.events, nil
	}
	return frame, []detect.Event{}, nil
}

func (d *stubDetector) Close() error { return nil }

func (d *stubDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func newTestWatcher(buf *video.Buffer, det detect.Detector) *Watcher {
	cfg := DefaultConfig("TestWatcher")
	cfg.PollInterval = time.Millisecond
	return New(cfg, buf, det)
}

func writeFrame(buf *video.Buffer, ts time.Time) {
	buf.Write(video.NewFrame(ts, gocv.NewMatWithSize(24, 32, gocv.MatTypeCV8UC3)))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcherAlignedConsumerProcessesNothing(t *testing.T) {
	buf := video.NewBuffer(8)
	det := &stubDetector{}
	w := newTestWatcher(buf, det)

	// Producer fills all eight slots; the cursor ends at 7.
	for i := 0; i < 8; i++ {
		writeFrame(buf, time.Now())
	}
	if got := buf.WriteIndex(); got != 7 {
		t.Fatalf("WriteIndex() = %d, want 7", got)
	}

	// A consumer aligned with the cursor has nothing to do.
	w.frameIndex = buf.WriteIndex()
	w.running.Store(true)
	if err := w.catchUp(); err != nil {
		t.Fatalf("catchUp() error = %v", err)
	}
	if got := det.callCount(); got != 0 {
		t.Errorf("aligned catch-up processed %d frames, want 0", got)
	}

	// One more write wraps the cursor to 0; exactly that frame is processed.
	writeFrame(buf, time.Now())
	if got := buf.WriteIndex(); got != 0 {
		t.Fatalf("WriteIndex() after wrap = %d, want 0", got)
	}
	if err := w.catchUp(); err != nil {
		t.Fatalf("catchUp() error = %v", err)
	}
	if got := det.callCount(); got != 1 {
		t.Errorf("catch-up after wrap processed %d frames, want 1", got)
	}
	if w.frameIndex != 0 {
		t.Errorf("local cursor = %d, want 0", w.frameIndex)
	}
}

func TestWatcherProcessesEveryWriteInOrder(t *testing.T) {
	buf := video.NewBuffer(8)
	det := &stubDetector{}
	w := newTestWatcher(buf, det)
	w.frameIndex = buf.WriteIndex()
	w.running.Store(true)

	// Fewer writes than capacity between checks: every frame is seen once,
	// in write order.
	base := time.Unix(2000, 0)
	var want []time.Time
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		writeFrame(buf, ts)
		want = append(want, ts)
	}
	if err := w.catchUp(); err != nil {
		t.Fatalf("catchUp() error = %v", err)
	}

	det.mu.Lock()
	got := append([]time.Time(nil), det.timestamps...)
	det.mu.Unlock()

	if len(got) != len(want) {
		t.Fatalf("processed %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("frame %d timestamp = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestWatcherSkipsOldestWhenLapped(t *testing.T) {
	buf := video.NewBuffer(4)
	det := &stubDetector{}
	w := newTestWatcher(buf, det)
	w.frameIndex = buf.WriteIndex()
	w.running.Store(true)

	// Ten writes against capacity four: the consumer is lapped and must
	// resynchronize at the latest slot, processing only the survivors.
	base := time.Unix(3000, 0)
	for i := 0; i < 10; i++ {
		writeFrame(buf, base.Add(time.Duration(i)*time.Second))
	}
	if err := w.catchUp(); err != nil {
		t.Fatalf("catchUp() error = %v", err)
	}

	// Cursor ended at slot 1 (10 mod 4); a consumer at the initial cursor 3
	// steps through slots 0 and 1, holding writes 9 and 10.
	if got := det.callCount(); got != 2 {
		t.Fatalf("lapped catch-up processed %d frames, want 2", got)
	}
	det.mu.Lock()
	last := det.timestamps[len(det.timestamps)-1]
	det.mu.Unlock()
	if want := base.Add(9 * time.Second); !last.Equal(want) {
		t.Errorf("last processed timestamp = %v, want %v (latest write)", last, want)
	}
	if w.frameIndex != buf.WriteIndex() {
		t.Errorf("consumer ended at slot %d, want synchronized with cursor %d",
			w.frameIndex, buf.WriteIndex())
	}
}

func TestWatcherEmptySlotsAreSkippedSilently(t *testing.T) {
	buf := video.NewBuffer(8)
	det := &stubDetector{}
	w := newTestWatcher(buf, det)

	// Force the consumer behind an unwarmed region of the ring: slots 1..7
	// were never written.
	writeFrame(buf, time.Now())
	w.frameIndex = 3
	w.running.Store(true)

	if err := w.catchUp(); err != nil {
		t.Fatalf("catchUp() error = %v", err)
	}
	// Slots 4..7 are nil and skipped; slot 0 holds the one real frame.
	if got := det.callCount(); got != 1 {
		t.Errorf("processed %d frames, want 1", got)
	}
}

func TestWatcherStartStop(t *testing.T) {
	buf := video.NewBuffer(8)
	det := &stubDetector{}
	w := newTestWatcher(buf, det)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "watcher running", w.Running)

	writeFrame(buf, time.Now())
	waitFor(t, "first frame processed", func() bool { return det.callCount() == 1 })

	w.Stop()
	if w.Running() {
		t.Error("Running() = true after Stop")
	}

	// Zero processing after Stop returns.
	writeFrame(buf, time.Now())
	time.Sleep(20 * time.Millisecond)
	if got := det.callCount(); got != 1 {
		t.Errorf("frames processed after Stop = %d, want 1", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	buf := video.NewBuffer(4)
	w := newTestWatcher(buf, &stubDetector{})

	// Stop before Start is a no-op.
	w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("double Stop() hung")
	}
}

func TestWatcherStartWithoutBuffer(t *testing.T) {
	w := newTestWatcher(nil, &stubDetector{})
	if err := w.Start(); !errors.Is(err, ErrNoBuffer) {
		t.Errorf("Start() error = %v, want ErrNoBuffer", err)
	}
}

func TestWatcherDetectorFailureIsFailStop(t *testing.T) {
	buf := video.NewBuffer(8)
	det := &stubDetector{failAt: 2}
	w := newTestWatcher(buf, det)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	writeFrame(buf, time.Now())
	waitFor(t, "first frame processed", func() bool { return det.callCount() == 1 })

	// The second frame fails inside the detector; the loop must terminate.
	writeFrame(buf, time.Now())
	waitFor(t, "watcher terminated", func() bool { return !w.Running() })

	// The next frame is never delivered to this instance.
	writeFrame(buf, time.Now())
	time.Sleep(20 * time.Millisecond)
	if got := det.callCount(); got != 2 {
		t.Errorf("detector calls after failure = %d, want 2", got)
	}

	// Stop on an already-terminated watcher neither hangs nor errors.
	w.Stop()
}

func TestWatcherHeartbeat(t *testing.T) {
	buf := video.NewBuffer(4)
	cfg := DefaultConfig("HeartbeatWatcher")
	cfg.PollInterval = time.Millisecond
	cfg.HeartbeatInterval = 10 * time.Millisecond
	w := New(cfg, buf, &stubDetector{})

	var mu sync.Mutex
	var beats []uint64
	w.OnHeartbeat = func(name string, count uint64) {
		if name != "HeartbeatWatcher" {
			t.Errorf("heartbeat name = %q, want %q", name, "HeartbeatWatcher")
		}
		mu.Lock()
		beats = append(beats, count)
		mu.Unlock()
	}

	writeFrame(buf, time.Now())
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	// The liveness signal fires even with no frames being processed.
	waitFor(t, "heartbeat", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(beats) > 0
	})
	mu.Lock()
	defer mu.Unlock()
	if beats[0] != buf.FrameCount() {
		t.Errorf("heartbeat frame_count = %d, want %d", beats[0], buf.FrameCount())
	}
}

func TestProcessFrameNormalizesNilEvents(t *testing.T) {
	det := &stubDetector{nilEvents: true}
	w := newTestWatcher(video.NewBuffer(2), det)

	mat := gocv.NewMatWithSize(24, 32, gocv.MatTypeCV8UC3)
	defer mat.Close()

	processed, events, err := w.ProcessFrame(time.Now(), mat)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	defer processed.Close()
	if events == nil {
		t.Error("ProcessFrame() events = nil, want empty slice")
	}
}

func TestProcessFrameStampsOverlayOnCopy(t *testing.T) {
	det := &stubDetector{}
	w := newTestWatcher(video.NewBuffer(2), det)

	mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()

	processed, _, err := w.ProcessFrame(time.Now(), mat)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	defer processed.Close()

	// The source frame is read-only: the overlay lands on the copy.
	if nonZeroPixels(mat) != 0 {
		t.Error("source frame was mutated by the overlay")
	}
	if nonZeroPixels(processed) == 0 {
		t.Error("processed frame carries no overlay")
	}
}

func nonZeroPixels(m gocv.Mat) int {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	return gocv.CountNonZero(gray)
}
