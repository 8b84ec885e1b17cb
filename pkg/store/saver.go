// Package store persists training captures: for each processed frame with a
// non-empty event list it writes the raw frame, the annotated frame and the
// event metadata, plus an aggregate event log compatible with the replay
// detector.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"floorwatch/internal/log"
	"floorwatch/pkg/detect"
)

// Saver writes capture artifacts under a single directory.
type Saver struct {
	dir string

	mu       sync.Mutex
	captured map[string][]detect.Event // frame sequence -> events, for the aggregate log
}

// NewSaver creates the capture directory if needed.
func NewSaver(dir string) (*Saver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir %s: %w", dir, err)
	}
	return &Saver{dir: dir, captured: make(map[string][]detect.Event)}, nil
}

// Save writes frame_<seq>.jpeg (raw), frame_<seq>.bb.jpeg (annotated) and
// frame_<seq>.json (the verbatim event sequence) and records the events for
// the aggregate log.
func (s *Saver) Save(seq uint64, frame, annotated gocv.Mat, events []detect.Event) error {
	base := filepath.Join(s.dir, fmt.Sprintf("frame_%d", seq))

	if ok := gocv.IMWrite(base+".jpeg", frame); !ok {
		return fmt.Errorf("write %s.jpeg failed", base)
	}
	if ok := gocv.IMWrite(base+".bb.jpeg", annotated); !ok {
		return fmt.Errorf("write %s.bb.jpeg failed", base)
	}

	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal events for frame %d: %w", seq, err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return fmt.Errorf("write %s.json: %w", base, err)
	}

	s.mu.Lock()
	s.captured[strconv.FormatUint(seq, 10)] = events
	s.mu.Unlock()

	log.Debug("capture saved", "frame", seq, "events", len(events))
	return nil
}

// Captured returns the number of frames saved so far.
func (s *Saver) Captured() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captured)
}

// Close writes detection_events.json, the aggregate per-frame event log the
// replay detector consumes.
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.captured) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(s.captured, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal aggregate event log: %w", err)
	}
	path := filepath.Join(s.dir, "detection_events.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
