package nima

import (
	"context"
	"image"
	"os"

	"github.com/pkg/errors"

	"github.com/vqa-ai/go-nima/images"
	"github.com/vqa-ai/go-nima/inference"
	"github.com/vqa-ai/go-nima/scores"
)

// ortEngine scores images through an ONNX Runtime session with preallocated
// tensors. Preprocessing writes straight into the session's input buffer.
type ortEngine struct {
	session *inference.Session
	tensor  images.TensorConfig
}

// newORTEngine loads the model through ONNX Runtime.
//
// Construction order: native environment, model IO discovery, layout and
// shape resolution, output validation, session. Any failure propagates with
// the runtime's diagnostic attached.
func newORTEngine(cfg Config) (*ortEngine, error) {
	if _, err := os.Stat(cfg.Model); err != nil {
		return nil, errors.Wrapf(err, "model file not found at %s", cfg.Model)
	}

	if err := inference.Initialize(cfg.ORTLibrary, cfg.Verbose); err != nil {
		return nil, err
	}

	info, err := inference.Inspect(cfg.Model)
	if err != nil {
		return nil, err
	}
	in, out, err := info.Single()
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported model %s", cfg.Model)
	}

	inputName := cfg.InputName
	if inputName == "" {
		inputName = in.Name
	}
	outputName := cfg.OutputName
	if outputName == "" {
		outputName = out.Name
	}

	layout, inputShape, err := resolveInputShape(in.Shape, cfg.layout(), cfg.InputSize)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving input shape of %s", cfg.Model)
	}

	outputShape, err := resolveOutputShape(out.Shape)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving output shape of %s", cfg.Model)
	}

	session, err := inference.NewSession(inference.Config{
		ModelPath:   cfg.Model,
		InputName:   inputName,
		OutputName:  outputName,
		InputShape:  inputShape,
		OutputShape: outputShape,
		LibraryPath: cfg.ORTLibrary,
		Provider:    cfg.Provider,
		Tuning:      cfg.Tuning,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}

	width, height := spatialDims(layout, inputShape)

	return &ortEngine{
		session: session,
		tensor: images.TensorConfig{
			Width:         width,
			Height:        height,
			Normalization: cfg.normalization(),
			Layout:        layout,
			Mean:          cfg.Mean,
			Std:           cfg.Std,
		},
	}, nil
}

// Prepare writes the image into the session's input tensor.
func (e *ortEngine) Prepare(img image.Image) error {
	return images.ToTensorInto(img, e.tensor, e.session.InputData())
}

// Forward runs the session over the prepared input.
func (e *ortEngine) Forward(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.session.Run()
}

// Close releases the session and tears the native environment down.
func (e *ortEngine) Close() error {
	err := e.session.Close()
	if shutdownErr := inference.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// resolveInputShape turns the model's declared input shape into a concrete
// 4D tensor shape and layout.
//
// The layout is taken from the configuration, or inferred from the position
// of the 3-channel dimension when set to auto. Concrete model dimensions
// win; the configured input size only fills dynamic spatial dimensions.
//
// Arguments:
//   - declared: The input shape from the model file. Dynamic dimensions are
//     non-positive.
//   - layout: The configured layout, possibly LayoutAuto.
//   - inputSize: The fallback edge length for dynamic spatial dimensions.
//
// Returns:
//   - images.Layout: The resolved concrete layout.
//   - []int64: The concrete 4D shape to allocate.
//   - error: An error when the shape cannot describe a single RGB image.
func resolveInputShape(declared []int64, layout images.Layout, inputSize int) (images.Layout, []int64, error) {
	if len(declared) != 4 {
		return "", nil, errors.Errorf("model input is %d-dimensional %v, want 4 (batch, spatial, channel)", len(declared), declared)
	}
	if declared[0] > 1 {
		return "", nil, errors.Errorf("model declares batch size %d, want 1", declared[0])
	}

	if layout == LayoutAuto || layout == "" {
		switch {
		case declared[1] == images.Channels:
			layout = images.LayoutNCHW
		case declared[3] == images.Channels:
			layout = images.LayoutNHWC
		default:
			return "", nil, errors.Errorf("cannot infer layout from input shape %v; configure nchw or nhwc", declared)
		}
	}

	channelDim := 3
	if layout == images.LayoutNCHW {
		channelDim = 1
	}
	if declared[channelDim] > 0 && declared[channelDim] != images.Channels {
		return "", nil, errors.Errorf("model input declares %d channels in shape %v, want %d", declared[channelDim], declared, images.Channels)
	}

	shape := make([]int64, 4)
	shape[0] = 1
	shape[channelDim] = images.Channels
	for _, dim := range spatialPositions(layout) {
		if declared[dim] > 0 {
			shape[dim] = declared[dim]
		} else {
			shape[dim] = int64(inputSize)
		}
	}

	return layout, shape, nil
}

// resolveOutputShape turns the model's declared output shape into a concrete
// one and checks it holds exactly one value per quality bucket.
func resolveOutputShape(declared []int64) ([]int64, error) {
	if len(declared) == 0 {
		return nil, errors.New("model declares no output shape")
	}

	shape := make([]int64, len(declared))
	count := int64(1)
	for i, dim := range declared {
		if dim <= 0 {
			dim = 1
		}
		shape[i] = dim
		count *= dim
	}

	if count != scores.NumBuckets {
		return nil, errors.Errorf("model output holds %d values, want %d quality buckets", count, scores.NumBuckets)
	}

	return shape, nil
}

// spatialPositions returns the indexes of the height and width dimensions
// for the layout.
func spatialPositions(layout images.Layout) [2]int {
	if layout == images.LayoutNCHW {
		return [2]int{2, 3}
	}
	return [2]int{1, 2}
}

// spatialDims extracts (width, height) from a concrete 4D shape.
func spatialDims(layout images.Layout, shape []int64) (int, int) {
	pos := spatialPositions(layout)
	return int(shape[pos[1]]), int(shape[pos[0]])
}
