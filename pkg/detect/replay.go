package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

// Replay feeds back a recorded detection log instead of running a live
// algorithm. Events are keyed by processed-frame sequence number, so the
// same footage replays the same annotations deterministically. Useful for
// demos and for exercising the tracker without a model.
type Replay struct {
	events  map[uint64][]Event
	classes map[int]ClassMeta
	seq     uint64
}

// NewReplay loads a recorded event log (JSON object mapping frame sequence
// numbers to event arrays, as written by the capture saver).
func NewReplay(path string, classes map[int]ClassMeta) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay log: %w", err)
	}

	var raw map[string][]Event
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse replay log %s: %w", path, err)
	}

	events := make(map[uint64][]Event, len(raw))
	for key, evs := range raw {
		seq, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replay log %s: bad frame key %q", path, key)
		}
		events[seq] = evs
	}

	return &Replay{events: events, classes: classes}, nil
}

// Name implements Detector.
func (r *Replay) Name() string { return "replay" }

// Process implements Detector. The sequence counter advances once per
// processed frame, mirroring the frame counter the log was recorded against.
func (r *Replay) Process(ts time.Time, frame gocv.Mat) (gocv.Mat, []Event, error) {
	r.seq++

	events := r.events[r.seq]
	if events == nil {
		events = []Event{}
	}

	drawEvents(&frame, events, r.classes)
	return frame, events, nil
}

// Close implements Detector.
func (r *Replay) Close() error { return nil }
