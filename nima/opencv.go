package nima

import (
	"context"
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/vqa-ai/go-nima/images"
	"github.com/vqa-ai/go-nima/scores"
)

// opencvEngine scores images through the OpenCV DNN module. The blob carries
// the normalization; layout is always NCHW.
type opencvEngine struct {
	net     gocv.Net
	blob    gocv.Mat
	hasBlob bool
	size    image.Point
	norm    images.Normalization
}

// newOpenCVEngine loads the model through gocv.ReadNet.
func newOpenCVEngine(cfg Config) (*opencvEngine, error) {
	info, err := os.Stat(cfg.Model)
	if err != nil {
		return nil, errors.Wrapf(err, "model file not found at %s", cfg.Model)
	}
	if info.Size() == 0 {
		return nil, errors.Errorf("model file is empty: %s", cfg.Model)
	}

	net := gocv.ReadNet(cfg.Model, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load model from %s (may be incompatible with OpenCV DNN)", cfg.Model)
	}

	if len(net.GetLayerNames()) == 0 {
		net.Close()
		return nil, errors.Errorf("model %s declares no layers", cfg.Model)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendOpenCV); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "selecting DNN backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "selecting DNN target")
	}

	return &opencvEngine{
		net:  net,
		size: image.Pt(cfg.InputSize, cfg.InputSize),
		norm: cfg.normalization(),
	}, nil
}

// Prepare resizes the image and packs it into an input blob.
func (e *opencvEngine) Prepare(img image.Image) error {
	// ImageToMatRGB returns BGR-ordered bytes despite its name, so the blob
	// swaps R and B back.
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "converting image to Mat")
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, e.size, 0, 0, gocv.InterpolationLinear)

	scale, mean := blobParams(e.norm)
	blob := gocv.BlobFromImage(resized, scale, e.size, mean, true, false)
	if blob.Empty() {
		blob.Close()
		return errors.New("packing image into input blob produced no data")
	}

	if e.hasBlob {
		e.blob.Close()
	}
	e.blob = blob
	e.hasBlob = true

	return nil
}

// blobParams maps a normalization onto BlobFromImage's mean-then-scale
// arithmetic: out = (pixel - mean) * scale.
func blobParams(norm images.Normalization) (float64, gocv.Scalar) {
	switch norm {
	case images.NormalizeZeroToOne:
		return 1.0 / 255.0, gocv.NewScalar(0, 0, 0, 0)
	case images.NormalizeMinusOneToOne:
		return 1.0 / 127.5, gocv.NewScalar(127.5, 127.5, 127.5, 0)
	default:
		return 1.0, gocv.NewScalar(0, 0, 0, 0)
	}
}

// Forward runs the network over the prepared blob and reads one value per
// quality bucket.
func (e *opencvEngine) Forward(ctx context.Context) ([]float32, error) {
	if !e.hasBlob {
		return nil, errors.New("no input prepared")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.net.SetInput(e.blob, "")
	output := e.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return nil, errors.New("inference returned empty output")
	}
	if total := output.Total(); total != scores.NumBuckets {
		return nil, errors.Errorf("model output holds %d values, want %d quality buckets", total, scores.NumBuckets)
	}

	// A dense head comes back as a 1xN row.
	out := make([]float32, scores.NumBuckets)
	for i := 0; i < scores.NumBuckets; i++ {
		out[i] = output.GetFloatAt(0, i)
	}

	return out, nil
}

// Close releases the blob and the network.
func (e *opencvEngine) Close() error {
	if e.hasBlob {
		e.blob.Close()
		e.hasBlob = false
	}
	if !e.net.Empty() {
		return e.net.Close()
	}
	return nil
}
