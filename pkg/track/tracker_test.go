package track

import (
	"testing"
	"time"

	"gocv.io/x/gocv"

	"floorwatch/pkg/detect"
)

var demoClasses = map[int]detect.ClassMeta{
	0: {Label: "forklift"},
	1: {Label: "person"},
}

func event(classID int, cx, cy float64) detect.Event {
	meta := demoClasses[classID]
	return detect.Event{
		ClassID:    classID,
		Label:      meta.Label,
		X:          cx - 0.05,
		Y:          cy - 0.05,
		W:          0.1,
		H:          0.1,
		Confidence: 0.9,
	}
}

func testTracker(threshold float64) *CentroidTracker {
	cfg := DefaultConfig(demoClasses)
	cfg.DistanceThreshold = threshold
	return New(cfg)
}

func emptyFrame() gocv.Mat {
	return gocv.NewMat()
}

func TestUpdateMergesNearbyDetections(t *testing.T) {
	c := testTracker(0.025)
	frame := emptyFrame()
	defer frame.Close()

	// Two detections 0.01 apart on consecutive frames resolve to one
	// identity.
	c.Update(frame, []detect.Event{event(1, 0.50, 0.50)})
	c.Update(frame, []detect.Event{event(1, 0.51, 0.50)})

	tracks := c.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() = %d identities, want 1", len(tracks))
	}
	if tracks[0].Hits != 2 {
		t.Errorf("track hits = %d, want 2", tracks[0].Hits)
	}
	if tracks[0].CX != 0.51 {
		t.Errorf("track centroid x = %v, want updated to 0.51", tracks[0].CX)
	}
}

func TestUpdateSpawnsForDistantDetection(t *testing.T) {
	c := testTracker(0.025)
	frame := emptyFrame()
	defer frame.Close()

	c.Update(frame, []detect.Event{event(1, 0.50, 0.50)})
	c.Update(frame, []detect.Event{event(1, 0.70, 0.50)})

	if got := len(c.Tracks()); got != 2 {
		t.Errorf("Tracks() = %d identities, want 2", got)
	}
}

func TestUpdateNeverMergesAcrossClasses(t *testing.T) {
	c := testTracker(0.025)
	frame := emptyFrame()
	defer frame.Close()

	// Same position, different classes: always distinct identities.
	c.Update(frame, []detect.Event{event(0, 0.50, 0.50)})
	c.Update(frame, []detect.Event{event(1, 0.50, 0.50)})

	if got := len(c.Tracks()); got != 2 {
		t.Errorf("Tracks() = %d identities, want 2", got)
	}
}

func TestUpdateClaimsTrackOncePerFrame(t *testing.T) {
	c := testTracker(0.1)
	frame := emptyFrame()
	defer frame.Close()

	c.Update(frame, []detect.Event{event(1, 0.50, 0.50)})
	// Two detections near the same track in one frame: one joins it, the
	// other must spawn.
	c.Update(frame, []detect.Event{event(1, 0.52, 0.50), event(1, 0.48, 0.50)})

	if got := len(c.Tracks()); got != 2 {
		t.Errorf("Tracks() = %d identities, want 2", got)
	}
}

func TestRetireAfterMemoryWindow(t *testing.T) {
	cfg := DefaultConfig(demoClasses)
	cfg.DefaultMemory = time.Second
	cfg.ClassMemory = map[int]time.Duration{1: 5 * time.Second}
	c := New(cfg)

	frame := emptyFrame()
	defer frame.Close()

	now := time.Unix(5000, 0)
	c.now = func() time.Time { return now }

	c.Update(frame, []detect.Event{event(0, 0.2, 0.2), event(1, 0.8, 0.8)})
	if got := len(c.Tracks()); got != 2 {
		t.Fatalf("Tracks() = %d, want 2", got)
	}

	// Past the default window but inside the person-class window: only the
	// forklift identity is retired.
	now = now.Add(2 * time.Second)
	c.Update(frame, nil)

	tracks := c.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("Tracks() = %d identities, want 1", len(tracks))
	}
	if tracks[0].ClassID != 1 {
		t.Errorf("surviving track class = %d, want 1 (longer memory)", tracks[0].ClassID)
	}

	// Past the person-class window too.
	now = now.Add(6 * time.Second)
	c.Update(frame, nil)
	if got := len(c.Tracks()); got != 0 {
		t.Errorf("Tracks() = %d identities, want 0", got)
	}
}

func TestDetectFlagsCrossClassOverlap(t *testing.T) {
	c := testTracker(0.025)
	frame := emptyFrame()
	defer frame.Close()

	// Overlapping boxes of different classes.
	c.Update(frame, []detect.Event{event(0, 0.50, 0.50), event(1, 0.53, 0.50)})
	c.Detect(frame)

	if got := c.ActiveCollisions(); got != 1 {
		t.Errorf("ActiveCollisions() = %d, want 1", got)
	}
}

func TestDetectIgnoresSameClassOverlap(t *testing.T) {
	c := testTracker(0.025)
	frame := emptyFrame()
	defer frame.Close()

	c.Update(frame, []detect.Event{event(1, 0.50, 0.50), event(1, 0.53, 0.50)})
	c.Detect(frame)

	if got := c.ActiveCollisions(); got != 0 {
		t.Errorf("ActiveCollisions() = %d, want 0", got)
	}
}

func TestDetectNoCollisionWhenApart(t *testing.T) {
	c := testTracker(0.025)
	frame := emptyFrame()
	defer frame.Close()

	c.Update(frame, []detect.Event{event(0, 0.2, 0.2), event(1, 0.8, 0.8)})
	c.Detect(frame)

	if got := c.ActiveCollisions(); got != 0 {
		t.Errorf("ActiveCollisions() = %d, want 0", got)
	}
}
