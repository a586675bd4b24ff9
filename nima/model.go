package nima

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vqa-ai/go-nima/images"
	"github.com/vqa-ai/go-nima/scores"
)

// Timings breaks one scoring pass down by stage.
type Timings struct {
	Decode      time.Duration
	Preprocess  time.Duration
	Inference   time.Duration
	Postprocess time.Duration
	Total       time.Duration
}

// Model binds a scoring engine to its preprocessing configuration.
// Constructed once per process, used for one image, then closed. Not safe
// for concurrent use.
type Model struct {
	cfg    Config
	engine Engine
}

// NewModel validates cfg and loads the configured engine. A missing or
// incompatible model file fails here with the runtime's diagnostic attached.
func NewModel(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	return &Model{cfg: cfg, engine: engine}, nil
}

// ScoreFile decodes the image at path and scores it.
//
// Returns the (mean, std) summary of the 10-bucket quality distribution the
// model assigns. Decode and inference failures propagate unchanged; there is
// no retry and no partial result.
func (m *Model) ScoreFile(ctx context.Context, path string) (scores.Summary, error) {
	start := time.Now()
	var t Timings

	decodeStart := time.Now()
	img, format, err := m.decode(path)
	if err != nil {
		return scores.Summary{}, err
	}
	t.Decode = time.Since(decodeStart)

	summary, err := m.score(ctx, img, &t)
	if err != nil {
		return scores.Summary{}, err
	}
	t.Total = time.Since(start)

	logTimings(summary, t, logrus.Fields{"image": path, "format": format})

	return summary, nil
}

// ScoreImage scores an already decoded image.
func (m *Model) ScoreImage(ctx context.Context, img image.Image) (scores.Summary, error) {
	start := time.Now()
	var t Timings

	summary, err := m.score(ctx, img, &t)
	if err != nil {
		return scores.Summary{}, err
	}
	t.Total = time.Since(start)

	logTimings(summary, t, nil)

	return summary, nil
}

// Close releases the engine's native resources.
func (m *Model) Close() error {
	return m.engine.Close()
}

// decode loads the image through the configured decoder path.
func (m *Model) decode(path string) (image.Image, images.Format, error) {
	if m.cfg.decoder() == DecoderVips {
		return images.LoadResized(path, m.cfg.InputSize, m.cfg.InputSize)
	}
	return images.DecodeFile(path)
}

// score runs preprocess, inference, and reduction over a decoded image,
// recording per-stage durations. The context is checked between stages; no
// timeout is installed here.
func (m *Model) score(ctx context.Context, img image.Image, t *Timings) (scores.Summary, error) {
	if err := ctx.Err(); err != nil {
		return scores.Summary{}, err
	}

	prepStart := time.Now()
	if err := m.engine.Prepare(img); err != nil {
		return scores.Summary{}, errors.Wrap(err, "preparing model input")
	}
	t.Preprocess = time.Since(prepStart)

	inferStart := time.Now()
	raw, err := m.engine.Forward(ctx)
	if err != nil {
		return scores.Summary{}, errors.Wrap(err, "running inference")
	}
	t.Inference = time.Since(inferStart)

	postStart := time.Now()
	if m.cfg.Softmax {
		raw = scores.Softmax(raw)
	}
	dist, err := scores.FromSlice(raw)
	if err != nil {
		return scores.Summary{}, errors.Wrap(err, "interpreting model output")
	}
	summary := dist.Summarize()
	t.Postprocess = time.Since(postStart)

	return summary, nil
}

func logTimings(summary scores.Summary, t Timings, extra logrus.Fields) {
	fields := logrus.Fields{
		"decode":      t.Decode,
		"preprocess":  t.Preprocess,
		"inference":   t.Inference,
		"postprocess": t.Postprocess,
		"total":       t.Total,
		"mean":        summary.Mean,
		"std":         summary.Std,
	}
	for k, v := range extra {
		fields[k] = v
	}
	logrus.WithFields(fields).Debug("scored image")
}
