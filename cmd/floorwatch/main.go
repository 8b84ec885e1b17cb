// Floorwatch live pipeline: camera (or stream) capture into a circular
// frame buffer, with a watcher running detection and tracking behind it and
// a web dashboard serving status and a live MJPEG view.
package main

import (
	"context"
	"flag"
	"image/color"
	"os"
	"os/signal"
	"syscall"

	"floorwatch/internal/config"
	"floorwatch/internal/log"
	"floorwatch/pkg/detect"
	"floorwatch/pkg/render"
	"floorwatch/pkg/track"
	"floorwatch/pkg/video"
	"floorwatch/pkg/watcher"
	"floorwatch/pkg/web"
)

func main() {
	source := flag.String("source", config.Source("0"), "camera index, file path or stream URL")
	variant := flag.String("detector", config.Detector(), "detector variant: motion, neuralnet or replay")
	model := flag.String("model", config.ModelPath("models/floorwatch.onnx"), "ONNX model path for the neuralnet detector")
	replay := flag.String("replay", "", "recorded event log for the replay detector")
	port := flag.String("port", config.WebPort(), "dashboard port")
	bufSize := flag.Int("buffer", config.DefaultBufferSize, "frame buffer capacity")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	log.Init(*logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	classes := map[int]detect.ClassMeta{
		0: {Label: "forklift", Color: color.RGBA{R: 55, G: 125, B: 225}},
		1: {Label: "person", Color: color.RGBA{R: 225, G: 125, B: 35}, VertOffset: -0.22},
	}

	neural := detect.DefaultNeuralConfig()
	neural.ModelPath = *model

	det, err := detect.New(detect.Variant(*variant), detect.Options{
		Classes:    classes,
		Motion:     detect.DefaultMotionConfig(),
		Neural:     neural,
		ReplayPath: *replay,
	})
	if err != nil {
		log.Error("detector setup failed", "error", err)
		os.Exit(1)
	}
	defer det.Close()

	src, err := video.OpenSource(*source)
	if err != nil {
		log.Error("open video source failed", "source", *source, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	buf := video.NewBuffer(*bufSize)
	producer := video.NewProducer("capture", src, buf)

	tracker := track.New(track.DefaultConfig(classes))

	live := render.NewMJPEG()

	w := watcher.New(watcher.DefaultConfig("floor"), buf, det)
	w.SetTracker(tracker)
	w.SetSink(live)

	server := web.NewServer(*port, buf, []*watcher.Watcher{w}, tracker, live)
	w.OnHeartbeat = server.HeartbeatFunc()
	w.OnEvents = server.EventsFunc()
	server.StartAsync(ctx)

	producer.Start()
	if err := w.Start(); err != nil {
		log.Error("watcher start failed", "error", err)
		producer.Stop()
		os.Exit(1)
	}

	log.Info("pipeline running",
		"source", *source,
		"detector", det.Name(),
		"buffer", buf.Capacity(),
		"dashboard", "http://localhost:"+*port)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case <-producer.Done():
		log.Info("video source exhausted")
	}

	producer.Stop()
	w.Stop()
	if err := server.Shutdown(); err != nil {
		log.Warn("dashboard shutdown failed", "error", err)
	}
	log.Info("pipeline stopped", "frames_buffered", buf.FrameCount(), "processed", w.Processed())
}
