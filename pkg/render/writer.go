package render

import (
	"fmt"

	"gocv.io/x/gocv"
)

// MovieWriter records processed frames to a movie file.
type MovieWriter struct {
	writer *gocv.VideoWriter
	path   string
}

// NewMovieWriter opens an mp4v-encoded movie file for writing. Frames
// published to it must match the declared dimensions.
func NewMovieWriter(path string, fps float64, width, height int) (*MovieWriter, error) {
	if fps <= 0 {
		// Sources that do not declare a rate still need a valid header.
		fps = 30
	}
	writer, err := gocv.VideoWriterFile(path, "mp4v", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open movie writer %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("movie writer %s failed to open", path)
	}
	return &MovieWriter{writer: writer, path: path}, nil
}

// Publish appends the frame to the movie.
func (m *MovieWriter) Publish(frame gocv.Mat) error {
	if frame.Empty() {
		return fmt.Errorf("movie writer: empty frame")
	}
	if err := m.writer.Write(frame); err != nil {
		return fmt.Errorf("movie writer %s: %w", m.path, err)
	}
	return nil
}

// Close finalizes the movie file.
func (m *MovieWriter) Close() error {
	return m.writer.Close()
}
