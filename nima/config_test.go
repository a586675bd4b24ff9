package nima

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqa-ai/go-nima/images"
	"github.com/vqa-ai/go-nima/inference/providers"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultModelPath, cfg.Model)
	assert.Equal(t, EngineORT, cfg.Engine)
	assert.Equal(t, DefaultInputSize, cfg.InputSize)
	assert.Equal(t, LayoutAuto, cfg.Layout)
	assert.Equal(t, images.NormalizeMinusOneToOne, cfg.Normalization)
	assert.Equal(t, DecoderNative, cfg.Decoder)
	assert.False(t, cfg.Softmax, "the stock export carries its softmax in the graph")
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	raw := `
model: /opt/models/quality.onnx
engine: opencv
input_size: 256
layout: nchw
normalization: zero-to-one
softmax: true
decoder: vips
tuning:
  intraOpNumThreads: 2
provider:
  backend: coreml
  coreml:
    cpuOnly: true
`
	path := filepath.Join(t.TempDir(), "nima.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/models/quality.onnx", cfg.Model)
	assert.Equal(t, EngineOpenCV, cfg.Engine)
	assert.Equal(t, 256, cfg.InputSize)
	assert.Equal(t, images.LayoutNCHW, cfg.Layout)
	assert.Equal(t, images.NormalizeZeroToOne, cfg.Normalization)
	assert.True(t, cfg.Softmax)
	assert.Equal(t, DecoderVips, cfg.Decoder)
	assert.Equal(t, 2, cfg.Tuning.IntraOpNumThreads)
	assert.Equal(t, providers.CoreMLProviderBackend, cfg.Provider.Backend)
	assert.True(t, cfg.Provider.CoreML.CPUOnly)

	// Unset values keep their defaults.
	assert.Empty(t, cfg.InputName)
	assert.Empty(t, cfg.OutputName)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("model: [unterminated"), 0o644))
	_, err = LoadConfig(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestApplyEnvironment(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv(EnvModelPath, "/models/from-env.onnx")
	cfg.ApplyEnvironment()
	assert.Equal(t, "/models/from-env.onnx", cfg.Model)

	// An empty variable changes nothing.
	t.Setenv(EnvModelPath, "")
	cfg.ApplyEnvironment()
	assert.Equal(t, "/models/from-env.onnx", cfg.Model)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		errPart string
	}{
		{
			name:   "defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "opencv engine with nchw",
			mutate: func(c *Config) {
				c.Engine = EngineOpenCV
				c.Layout = images.LayoutNCHW
			},
		},
		{
			name: "standardize with stats",
			mutate: func(c *Config) {
				c.Normalization = images.NormalizeStandardize
				c.Mean = [images.Channels]float32{123.675, 116.28, 103.53}
				c.Std = [images.Channels]float32{58.395, 57.12, 57.375}
			},
		},
		{
			name:    "empty model path",
			mutate:  func(c *Config) { c.Model = "" },
			errPart: "model path is required",
		},
		{
			name:    "zero input size",
			mutate:  func(c *Config) { c.InputSize = 0 },
			errPart: "input size",
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.Engine = "tensorrt" },
			errPart: "unknown engine",
		},
		{
			name:    "unknown layout",
			mutate:  func(c *Config) { c.Layout = "chw" },
			errPart: "unknown layout",
		},
		{
			name:    "unknown normalization",
			mutate:  func(c *Config) { c.Normalization = "log-scaled" },
			errPart: "unknown normalization",
		},
		{
			name:    "standardize without stats",
			mutate:  func(c *Config) { c.Normalization = images.NormalizeStandardize },
			errPart: "std for channel 0 is zero",
		},
		{
			name:    "unknown decoder",
			mutate:  func(c *Config) { c.Decoder = "turbo" },
			errPart: "unknown decoder",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider.Backend = "npu" },
			errPart: "unknown execution provider",
		},
		{
			name:    "negative intra-op threads",
			mutate:  func(c *Config) { c.Tuning.IntraOpNumThreads = -4 },
			errPart: "intra-op thread count",
		},
		{
			name:    "negative inter-op threads",
			mutate:  func(c *Config) { c.Tuning.InterOpNumThreads = -1 },
			errPart: "inter-op thread count",
		},
		{
			name: "opencv rejects nhwc",
			mutate: func(c *Config) {
				c.Engine = EngineOpenCV
				c.Layout = images.LayoutNHWC
			},
			errPart: "nhwc is not available",
		},
		{
			name: "opencv rejects standardize",
			mutate: func(c *Config) {
				c.Engine = EngineOpenCV
				c.Normalization = images.NormalizeStandardize
				c.Std = [images.Channels]float32{1, 1, 1}
			},
			errPart: "standardize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.errPart == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errPart)
			}
		})
	}
}
