// Package config provides configuration helpers for floorwatch commands.
package config

import "os"

// Default pipeline configuration.
const (
	DefaultWebPort    = "8090"
	DefaultDetector   = "motion"
	DefaultBufferSize = 64
)

// Source returns the video source from FLOORWATCH_SOURCE env var.
// Falls back to the provided default if not set. Numeric values select a
// camera device, anything else is treated as a file or stream URL.
func Source(defaultSource string) string {
	if src := os.Getenv("FLOORWATCH_SOURCE"); src != "" {
		return src
	}
	return defaultSource
}

// Detector returns the detector variant from FLOORWATCH_DETECTOR env var.
// Valid values: "motion", "neuralnet", "replay".
func Detector() string {
	if d := os.Getenv("FLOORWATCH_DETECTOR"); d != "" {
		return d
	}
	return DefaultDetector
}

// ModelPath returns the neural-net model path from FLOORWATCH_MODEL env var
// or the provided default.
func ModelPath(defaultPath string) string {
	if p := os.Getenv("FLOORWATCH_MODEL"); p != "" {
		return p
	}
	return defaultPath
}

// WebPort returns the dashboard port from FLOORWATCH_WEB_PORT env var or
// the default.
func WebPort() string {
	if p := os.Getenv("FLOORWATCH_WEB_PORT"); p != "" {
		return p
	}
	return DefaultWebPort
}

// CaptureDir returns the training-capture directory from the
// FLOORWATCH_CAPTURES env var. Empty means capture is disabled.
func CaptureDir() string {
	return os.Getenv("FLOORWATCH_CAPTURES")
}
