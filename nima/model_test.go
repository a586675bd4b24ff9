package nima

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine feeds a canned distribution through the scoring pipeline without
// touching a native runtime.
type stubEngine struct {
	output     []float32
	prepareErr error
	forwardErr error

	prepared image.Image
	closed   bool
}

func (s *stubEngine) Prepare(img image.Image) error {
	if s.prepareErr != nil {
		return s.prepareErr
	}
	s.prepared = img
	return nil
}

func (s *stubEngine) Forward(ctx context.Context) ([]float32, error) {
	if s.forwardErr != nil {
		return nil, s.forwardErr
	}
	return s.output, nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

func stubModel(cfg Config, engine Engine) *Model {
	return &Model{cfg: cfg, engine: engine}
}

func grayImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	return img
}

func writeTestPNG(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, grayImage()))

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestModelScoreImage(t *testing.T) {
	uniform := make([]float32, 10)
	for i := range uniform {
		uniform[i] = 0.1
	}

	tests := []struct {
		name   string
		output []float32
		want   string
	}{
		{
			name:   "uniform distribution",
			output: uniform,
			want:   "5.50,2.87",
		},
		{
			name:   "all mass on the best bucket",
			output: []float32{0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
			want:   "10.00,0.00",
		},
		{
			name:   "all mass on the worst bucket",
			output: []float32{1, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			want:   "1.00,0.00",
		},
		{
			name:   "split between 4 and 6",
			output: []float32{0, 0, 0, 0.5, 0, 0.5, 0, 0, 0, 0},
			want:   "5.00,1.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &stubEngine{output: tt.output}
			model := stubModel(DefaultConfig(), engine)

			summary, err := model.ScoreImage(context.Background(), grayImage())
			require.NoError(t, err)
			assert.Equal(t, tt.want, summary.String())
			assert.NotNil(t, engine.prepared, "the image must reach the engine")
		})
	}
}

func TestModelSoftmaxOutputs(t *testing.T) {
	// Ten equal logits soften to the uniform distribution.
	logits := make([]float32, 10)
	for i := range logits {
		logits[i] = 2.0
	}

	cfg := DefaultConfig()
	cfg.Softmax = true
	model := stubModel(cfg, &stubEngine{output: logits})

	summary, err := model.ScoreImage(context.Background(), grayImage())
	require.NoError(t, err)
	assert.Equal(t, "5.50,2.87", summary.String())

	// Without the softmax pass the same logits are not a distribution.
	model = stubModel(DefaultConfig(), &stubEngine{output: logits})
	_, err = model.ScoreImage(context.Background(), grayImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interpreting model output")
}

func TestModelScoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		engine  *stubEngine
		errPart string
	}{
		{
			name:    "prepare failure",
			engine:  &stubEngine{prepareErr: errors.New("tensor too small")},
			errPart: "preparing model input",
		},
		{
			name:    "inference failure",
			engine:  &stubEngine{forwardErr: errors.New("session lost")},
			errPart: "running inference",
		},
		{
			name:    "truncated output",
			engine:  &stubEngine{output: []float32{0.2, 0.2, 0.2, 0.2, 0.2}},
			errPart: "interpreting model output",
		},
		{
			name:    "output does not sum to one",
			engine:  &stubEngine{output: []float32{0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05}},
			errPart: "interpreting model output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := stubModel(DefaultConfig(), tt.engine)

			_, err := model.ScoreImage(context.Background(), grayImage())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestModelScoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &stubEngine{output: []float32{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}}
	model := stubModel(DefaultConfig(), engine)

	_, err := model.ScoreImage(ctx, grayImage())
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, engine.prepared, "a cancelled context must stop the pipeline before preprocessing")
}

func TestModelScoreFile(t *testing.T) {
	path := writeTestPNG(t)

	engine := &stubEngine{output: []float32{0, 0, 0, 0, 0, 0, 0, 0, 0, 1}}
	model := stubModel(DefaultConfig(), engine)

	summary, err := model.ScoreFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "10.00,0.00", summary.String())

	require.NotNil(t, engine.prepared)
	bounds := engine.prepared.Bounds()
	assert.Equal(t, 64, bounds.Dx(), "the native decoder hands the engine the original pixels")
	assert.Equal(t, 64, bounds.Dy())
}

func TestModelScoreFileMissing(t *testing.T) {
	model := stubModel(DefaultConfig(), &stubEngine{})

	_, err := model.ScoreFile(context.Background(), filepath.Join(t.TempDir(), "absent.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading image")
}

func TestModelScoreFileNotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not pixels"), 0o644))

	model := stubModel(DefaultConfig(), &stubEngine{})

	_, err := model.ScoreFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized image format")
}

func TestModelClose(t *testing.T) {
	engine := &stubEngine{}
	model := stubModel(DefaultConfig(), engine)

	require.NoError(t, model.Close())
	assert.True(t, engine.closed)
}
