// Package track maintains cross-frame object identity. The processing core
// treats the tracker as a two-call black box: Update associates a frame's
// detections to tracked identities, Detect flags proximity between
// identities of different classes (the collision alert).
package track

import (
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"floorwatch/internal/log"
	"floorwatch/pkg/detect"
)

// Tracker is the contract the processing core depends on. Implementations
// are free to use any matching algorithm.
type Tracker interface {
	// Update associates the frame's detections with tracked identities.
	Update(frame gocv.Mat, events []detect.Event)

	// Detect annotates and alerts on collisions among tracked identities.
	// Side-effecting only.
	Detect(frame gocv.Mat)
}

// Config holds tracker tuning.
type Config struct {
	// Classes maps class ids to label/render metadata.
	Classes map[int]detect.ClassMeta

	// DistanceThreshold is the maximum normalized centroid distance for a
	// detection to join an existing identity of the same class.
	DistanceThreshold float64

	// DefaultMemory is how long an identity survives without being seen.
	DefaultMemory time.Duration

	// ClassMemory overrides DefaultMemory per class id; fast-moving classes
	// typically get shorter windows.
	ClassMemory map[int]time.Duration

	// AlertCooldown throttles repeated collision alerts for the same pair.
	AlertCooldown time.Duration
}

// DefaultConfig returns the tuning used by the floor demos.
func DefaultConfig(classes map[int]detect.ClassMeta) Config {
	return Config{
		Classes:           classes,
		DistanceThreshold: 0.025,
		DefaultMemory:     2 * time.Second,
		AlertCooldown:     2 * time.Second,
	}
}

// Track is one tracked identity.
type Track struct {
	ID       string
	ClassID  int
	Label    string
	CX, CY   float64 // normalized centroid
	W, H     float64 // normalized box size
	LastSeen time.Time
	Hits     int
}

// rect returns the track's current normalized bounding box.
func (t *Track) rect() (x0, y0, x1, y1 float64) {
	return t.CX - t.W/2, t.CY - t.H/2, t.CX + t.W/2, t.CY + t.H/2
}

// CentroidTracker associates detections to identities by nearest same-class
// centroid under the distance threshold, spawns identities for unmatched
// detections and retires identities absent beyond their class memory
// window.
type CentroidTracker struct {
	cfg Config

	mu         sync.Mutex
	tracks     map[string]*Track
	lastAlert  map[string]time.Time // pair key -> last alert time
	collisions int                  // pairs flagged on the most recent Detect

	alertColor color.RGBA

	// now is the clock, swappable in tests.
	now func() time.Time
}

// New creates a centroid tracker.
func New(cfg Config) *CentroidTracker {
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = 0.025
	}
	if cfg.DefaultMemory <= 0 {
		cfg.DefaultMemory = 2 * time.Second
	}
	return &CentroidTracker{
		cfg:        cfg,
		tracks:     make(map[string]*Track),
		lastAlert:  make(map[string]time.Time),
		alertColor: color.RGBA{R: 255, G: 30, B: 30},
		now:        time.Now,
	}
}

// Update implements Tracker.
func (c *CentroidTracker) Update(frame gocv.Mat, events []detect.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	claimed := make(map[string]bool, len(events))

	for _, e := range events {
		cx, cy := e.Center()

		var best *Track
		bestDist := c.cfg.DistanceThreshold
		for _, t := range c.tracks {
			if t.ClassID != e.ClassID || claimed[t.ID] {
				continue
			}
			d := math.Hypot(t.CX-cx, t.CY-cy)
			if d <= bestDist {
				bestDist = d
				best = t
			}
		}

		if best != nil {
			best.CX, best.CY = cx, cy
			best.W, best.H = e.W, e.H
			best.LastSeen = now
			best.Hits++
			claimed[best.ID] = true
			continue
		}

		t := &Track{
			ID:       uuid.NewString(),
			ClassID:  e.ClassID,
			Label:    e.Label,
			CX:       cx,
			CY:       cy,
			W:        e.W,
			H:        e.H,
			LastSeen: now,
			Hits:     1,
		}
		c.tracks[t.ID] = t
		claimed[t.ID] = true
		log.Debug("track spawned", "track", t.ID[:8], "label", t.Label)
	}

	// Retire identities unseen beyond their class memory window.
	for id, t := range c.tracks {
		if now.Sub(t.LastSeen) > c.memory(t.ClassID) {
			delete(c.tracks, id)
			log.Debug("track retired", "track", id[:8], "label", t.Label)
		}
	}
}

// Detect implements Tracker: it flags overlapping identities of different
// classes, drawing an alert box and logging at most once per cooldown per
// pair.
func (c *CentroidTracker) Detect(frame gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.collisions = 0

	ids := make([]*Track, 0, len(c.tracks))
	for _, t := range c.tracks {
		ids = append(ids, t)
	}

	cols := float64(frame.Cols())
	rows := float64(frame.Rows())

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if a.ClassID == b.ClassID {
				continue
			}
			if !overlaps(a, b) {
				continue
			}
			c.collisions++

			if !frame.Empty() {
				ax0, ay0, _, _ := a.rect()
				_, _, bx1, by1 := b.rect()
				alert := image.Rect(
					int(math.Min(ax0, b.CX-b.W/2)*cols),
					int(math.Min(ay0, b.CY-b.H/2)*rows),
					int(math.Max(bx1, a.CX+a.W/2)*cols),
					int(math.Max(by1, a.CY+a.H/2)*rows),
				)
				gocv.Rectangle(&frame, alert, c.alertColor, 3)
				gocv.PutText(&frame, "PROXIMITY", image.Pt(alert.Min.X, alert.Min.Y-6),
					gocv.FontHersheySimplex, 0.6, c.alertColor, 2)
			}

			key := pairKey(a.ID, b.ID)
			if now.Sub(c.lastAlert[key]) >= c.cfg.AlertCooldown {
				c.lastAlert[key] = now
				log.Warn("collision risk",
					"a", a.Label, "a_track", a.ID[:8],
					"b", b.Label, "b_track", b.ID[:8])
			}
		}
	}
}

// Tracks returns a snapshot of the current identities.
func (c *CentroidTracker) Tracks() []Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Track, 0, len(c.tracks))
	for _, t := range c.tracks {
		out = append(out, *t)
	}
	return out
}

// ActiveCollisions returns the number of colliding pairs flagged by the most
// recent Detect call.
func (c *CentroidTracker) ActiveCollisions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collisions
}

func (c *CentroidTracker) memory(classID int) time.Duration {
	if d, ok := c.cfg.ClassMemory[classID]; ok {
		return d
	}
	return c.cfg.DefaultMemory
}

// overlaps reports whether the two tracks' normalized boxes intersect.
func overlaps(a, b *Track) bool {
	ax0, ay0, ax1, ay1 := a.rect()
	bx0, by0, bx1, by1 := b.rect()
	return ax0 < bx1 && bx0 < ax1 && ay0 < by1 && by0 < ay1
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}
