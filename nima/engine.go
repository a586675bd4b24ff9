package nima

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// EngineKind selects the inference runtime backing a model.
type EngineKind string

const (
	// EngineORT runs the model through ONNX Runtime.
	EngineORT EngineKind = "ort"

	// EngineOpenCV runs the model through the OpenCV DNN module.
	EngineOpenCV EngineKind = "opencv"
)

// Engine abstracts one loaded scoring model. Implementations hold native
// resources and are not safe for concurrent use; a process scores one image
// at a time.
type Engine interface {
	// Prepare converts img into the engine's input representation, resizing
	// and normalizing as configured.
	Prepare(img image.Image) error

	// Forward runs one pass over the prepared input and returns the raw
	// model output, one value per quality bucket.
	Forward(ctx context.Context) ([]float32, error)

	// Close releases the engine's native resources.
	Close() error
}

// NewEngine constructs the engine cfg selects. The model file is loaded
// eagerly; a missing or incompatible file fails here, not at scoring time.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.engine() {
	case EngineORT:
		return newORTEngine(cfg)
	case EngineOpenCV:
		return newOpenCVEngine(cfg)
	default:
		return nil, errors.Errorf("unknown engine %q", cfg.Engine)
	}
}
