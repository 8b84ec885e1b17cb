package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"floorwatch/pkg/detect"
	"floorwatch/pkg/hub"
)

// WatcherStatus is one watcher's telemetry in the status payload.
type WatcherStatus struct {
	Name      string  `json:"name"`
	Running   bool    `json:"running"`
	Processed uint64  `json:"processed"`
	FPS       float64 `json:"fps"`
}

// Status is the full pipeline snapshot served by /api/status and pushed on
// /ws/status.
type Status struct {
	Time             string          `json:"time"`
	FramesBuffered   uint64          `json:"frames_buffered"`
	BufferCapacity   int             `json:"buffer_capacity"`
	Watchers         []WatcherStatus `json:"watchers"`
	TrackedObjects   int             `json:"tracked_objects,omitempty"`
	ActiveCollisions int             `json:"active_collisions,omitempty"`
	Subscribers      int             `json:"subscribers"`
}

// Heartbeat is the liveness message pushed on /ws/status for each watcher
// heartbeat.
type Heartbeat struct {
	Type       string `json:"type"` // always "heartbeat"
	Watcher    string `json:"watcher"`
	FrameCount uint64 `json:"frame_count"`
	Time       string `json:"time"`
}

// EventBatch is the detection message pushed on /ws/status for each
// processed frame with a non-empty event list.
type EventBatch struct {
	Type    string         `json:"type"` // always "events"
	Watcher string         `json:"watcher"`
	Events  []detect.Event `json:"events"`
}

func (s *Server) snapshot() Status {
	st := Status{
		Time:        time.Now().Format(time.RFC3339),
		Subscribers: s.statusHub.ClientCount(),
	}
	if s.buf != nil {
		st.FramesBuffered = s.buf.FrameCount()
		st.BufferCapacity = s.buf.Capacity()
	}
	for _, w := range s.watchers {
		st.Watchers = append(st.Watchers, WatcherStatus{
			Name:      w.Name(),
			Running:   w.Running(),
			Processed: w.Processed(),
			FPS:       w.FPS(),
		})
	}
	if s.tracker != nil {
		st.TrackedObjects = len(s.tracker.Tracks())
		st.ActiveCollisions = s.tracker.ActiveCollisions()
	}
	return st
}

// handleStatus returns the current pipeline snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

// handleTracks returns the tracker's current identities.
func (s *Server) handleTracks(c *fiber.Ctx) error {
	if s.tracker == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no tracker configured",
		})
	}
	return c.JSON(s.tracker.Tracks())
}

// handleStatusWS streams status snapshots to a websocket subscriber. The
// first snapshot goes out immediately, then the broadcast loop takes over.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	c.WriteJSON(s.snapshot())

	client := hub.NewClient(s.statusHub, c)
	client.Run()
}
