// Floorwatch demo: synchronous processing of a movie file through the
// per-frame contract, with optional frame skipping, rescaling, a desktop
// preview window, an annotated output movie and training captures.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floorwatch/internal/config"
	"floorwatch/internal/log"
	"floorwatch/pkg/detect"
	"floorwatch/pkg/render"
	"floorwatch/pkg/store"
	"floorwatch/pkg/track"
	"floorwatch/pkg/video"
	"floorwatch/pkg/watcher"
)

func main() {
	movie := flag.String("movie", "", "movie file to process (required)")
	variant := flag.String("detector", config.Detector(), "detector variant: motion, neuralnet or replay")
	model := flag.String("model", config.ModelPath("models/floorwatch.onnx"), "ONNX model path for the neuralnet detector")
	replay := flag.String("replay", "", "recorded event log for the replay detector")
	skip := flag.Int("skip", 0, "frames to discard between processed frames")
	scale := flag.Float64("scale", 1.0, "rescale factor applied before processing")
	delay := flag.Duration("delay", 0, "per-frame delay capping playback rate")
	out := flag.String("out", "", "write the annotated stream to this movie file")
	show := flag.Bool("window", false, "show a desktop preview window")
	captures := flag.String("captures", config.CaptureDir(), "training capture directory (empty disables capture)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	flag.Parse()

	log.Init(*logLevel)

	if *movie == "" {
		fmt.Fprintln(os.Stderr, "usage: demo -movie <file> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

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

	src, err := video.OpenSource(*movie)
	if err != nil {
		log.Error("open movie failed", "movie", *movie, "error", err)
		os.Exit(1)
	}
	defer src.Close()

	w := watcher.New(watcher.DefaultConfig("demo"), nil, det)
	w.SetTracker(track.New(track.DefaultConfig(classes)))

	runner := watcher.NewRunner(watcher.RunnerConfig{
		SkipCount:   *skip,
		ScaleFactor: *scale,
		Delay:       *delay,
	}, w, src)

	var saver *store.Saver
	if *captures != "" {
		saver, err = store.NewSaver(*captures)
		if err != nil {
			log.Error("capture dir setup failed", "error", err)
			os.Exit(1)
		}
		runner.SetSaver(saver)
	}

	if *out != "" {
		width, height := src.Size()
		if *scale != 0 && *scale != 1.0 {
			width = int(float64(width) * *scale)
			height = int(float64(height) * *scale)
		}
		writer, err := render.NewMovieWriter(*out, src.FPS(), width, height)
		if err != nil {
			log.Error("output movie setup failed", "out", *out, "error", err)
			os.Exit(1)
		}
		defer writer.Close()
		runner.AddSink(writer)
	}

	if *show {
		window := render.NewWindow("floorwatch demo")
		defer window.Close()
		runner.AddSink(window)
	}

	log.Info("processing movie",
		"movie", *movie,
		"detector", det.Name(),
		"skip", *skip,
		"scale", *scale)

	start := time.Now()
	err = runner.Run(ctx)
	captured := 0
	if saver != nil {
		if closeErr := saver.Close(); closeErr != nil {
			log.Warn("capture log flush failed", "error", closeErr)
		}
		captured = saver.Captured()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("processing failed", "error", err)
		os.Exit(1)
	}

	log.Info("movie processed",
		"frames_read", runner.FramesRead(),
		"processed", w.Processed(),
		"captures", captured,
		"elapsed", time.Since(start).Round(time.Millisecond))
}
