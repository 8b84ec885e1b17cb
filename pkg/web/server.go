// Package web serves the pipeline dashboard: a JSON status API, a live
// MJPEG view of the annotated stream and a websocket feed of watcher
// telemetry.
package web

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"floorwatch/internal/log"
	"floorwatch/pkg/detect"
	"floorwatch/pkg/hub"
	"floorwatch/pkg/render"
	"floorwatch/pkg/track"
	"floorwatch/pkg/video"
	"floorwatch/pkg/watcher"
)

// statusInterval is how often the status broadcast goes out to websocket
// subscribers.
const statusInterval = time.Second

// Server exposes the running pipeline over HTTP.
type Server struct {
	app  *fiber.App
	port string

	buf      *video.Buffer
	watchers []*watcher.Watcher
	tracker  *track.CentroidTracker // optional
	live     *render.MJPEG          // optional

	statusHub *hub.Hub
}

// NewServer wires the dashboard routes around the pipeline components.
// Tracker and live stream are optional; pass nil to omit their routes.
func NewServer(port string, buf *video.Buffer, watchers []*watcher.Watcher, tracker *track.CentroidTracker, live *render.MJPEG) *Server {
	s := &Server{
		port:      port,
		buf:       buf,
		watchers:  watchers,
		tracker:   tracker,
		live:      live,
		statusHub: hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "floorwatch",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/tracks", s.handleTracks)

	if live != nil {
		app.Get("/live", adaptor.HTTPHandler(live.Stream()))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start runs the hub, the periodic status broadcast and the HTTP listener.
// It blocks until the listener stops; cancel ctx to stop the broadcasts.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.broadcastLoop(ctx)

	log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync runs Start in a goroutine, logging any listener error.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("dashboard server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Notify pushes an out-of-band message (heartbeat, detection batch) to
// status subscribers. Non-blocking; dropped when nobody is listening.
func (s *Server) Notify(v any) {
	if s.statusHub.ClientCount() == 0 {
		return
	}
	if err := s.statusHub.BroadcastJSON(v); err != nil {
		log.Warn("notify broadcast failed", "error", err)
	}
}

// HeartbeatFunc returns a callback suitable for a watcher's OnHeartbeat hook.
func (s *Server) HeartbeatFunc() func(name string, frameCount uint64) {
	return func(name string, frameCount uint64) {
		s.Notify(Heartbeat{
			Type:       "heartbeat",
			Watcher:    name,
			FrameCount: frameCount,
			Time:       time.Now().Format(time.RFC3339),
		})
	}
}

// EventsFunc returns a callback suitable for a watcher's OnEvents hook.
func (s *Server) EventsFunc() func(name string, events []detect.Event) {
	return func(name string, events []detect.Event) {
		s.Notify(EventBatch{Type: "events", Watcher: name, Events: events})
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.statusHub.ClientCount() == 0 {
				continue
			}
			if err := s.statusHub.BroadcastJSON(s.snapshot()); err != nil {
				log.Warn("status broadcast failed", "error", err)
			}
		}
	}
}
