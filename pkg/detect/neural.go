package detect

import (
	"fmt"
	"image"
	"os"
	"time"

	"gocv.io/x/gocv"
)

// NeuralConfig holds DNN detector configuration.
type NeuralConfig struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float32 // Minimum confidence
	NMSThresh        float32 // Non-maximum-suppression overlap threshold
	InputSize        int     // Square model input edge length
}

// DefaultNeuralConfig returns production defaults for a YOLOv8-family model.
func DefaultNeuralConfig() NeuralConfig {
	return NeuralConfig{
		ModelPath:        "models/floorwatch.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputSize:        640,
	}
}

// NeuralNet runs DNN object detection on each frame and draws the resulting
// boxes using the class metadata.
type NeuralNet struct {
	net     gocv.Net
	cfg     NeuralConfig
	classes map[int]ClassMeta
}

// NewNeuralNet loads the ONNX model and prepares the detector.
func NewNeuralNet(cfg NeuralConfig, classes map[int]ClassMeta) (*NeuralNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &NeuralNet{net: net, cfg: cfg, classes: classes}, nil
}

// Name implements Detector.
func (n *NeuralNet) Name() string { return "neuralnet" }

// Process implements Detector.
func (n *NeuralNet) Process(ts time.Time, frame gocv.Mat) (gocv.Mat, []Event, error) {
	inputSize := image.Pt(n.cfg.InputSize, n.cfg.InputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	output := n.net.Forward("")
	defer output.Close()

	events, err := n.parseOutput(output, frame.Cols(), frame.Rows())
	if err != nil {
		return frame, nil, err
	}

	drawEvents(&frame, events, n.classes)
	return frame, events, nil
}

// parseOutput decodes a YOLOv8-layout tensor: [1, 4+numClasses, numBoxes],
// boxes as (cx, cy, w, h) in model-input pixels.
func (n *NeuralNet) parseOutput(output gocv.Mat, imgW, imgH int) ([]Event, error) {
	events := []Event{}

	rows := output.Cols() // candidate boxes
	cols := output.Rows() // 4 bbox values + class scores

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read model output: %w", err)
	}

	var boxes []image.Rectangle
	var confidences []float32
	var classIDs []int

	sx := float32(imgW) / float32(n.cfg.InputSize)
	sy := float32(imgH) / float32(n.cfg.InputSize)

	for i := 0; i < rows; i++ {
		maxScore := float32(0)
		maxClassID := 0
		for c := 4; c < cols; c++ {
			if score := data[c*rows+i]; score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}
		if maxScore < n.cfg.ConfidenceThresh {
			continue
		}

		cx := data[0*rows+i]
		cy := data[1*rows+i]
		w := data[2*rows+i]
		h := data[3*rows+i]

		x1 := int((cx - w/2) * sx)
		y1 := int((cy - h/2) * sy)
		x2 := int((cx + w/2) * sx)
		y2 := int((cy + h/2) * sy)

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClassID)
	}

	if len(boxes) == 0 {
		return events, nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, n.cfg.ConfidenceThresh, n.cfg.NMSThresh)
	for _, idx := range indices {
		box := boxes[idx]
		label := fmt.Sprintf("class %d", classIDs[idx])
		if meta, ok := n.classes[classIDs[idx]]; ok {
			label = meta.Label
		}
		events = append(events, Event{
			ClassID:    classIDs[idx],
			Label:      label,
			X:          float64(box.Min.X) / float64(imgW),
			Y:          float64(box.Min.Y) / float64(imgH),
			W:          float64(box.Dx()) / float64(imgW),
			H:          float64(box.Dy()) / float64(imgH),
			Confidence: float64(confidences[idx]),
		})
	}

	return events, nil
}

// Close releases the network.
func (n *NeuralNet) Close() error {
	return n.net.Close()
}
