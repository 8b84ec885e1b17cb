package detect

import "fmt"

// Variant selects a detector implementation. The set is closed; the variant
// is resolved once at construction and never changes at runtime.
type Variant string

const (
	VariantMotion    Variant = "motion"
	VariantNeuralNet Variant = "neuralnet"
	VariantReplay    Variant = "replay"
)

// Options carries construction parameters for all variants; each variant
// reads only its own section.
type Options struct {
	// Classes maps class ids to label/render metadata, shared by the
	// neuralnet and replay variants.
	Classes map[int]ClassMeta

	Motion MotionConfig
	Neural NeuralConfig

	// ReplayPath is the recorded event log consumed by the replay variant.
	ReplayPath string
}

// New constructs the detector for the given variant.
func New(variant Variant, opts Options) (Detector, error) {
	switch variant {
	case VariantMotion:
		return NewMotion(opts.Motion), nil
	case VariantNeuralNet:
		return NewNeuralNet(opts.Neural, opts.Classes)
	case VariantReplay:
		return NewReplay(opts.ReplayPath, opts.Classes)
	default:
		return nil, fmt.Errorf("unknown detector variant %q", variant)
	}
}
