// Package nima - Neural image assessment: scoring photo quality with a
// pretrained 10-bucket distribution model.
package nima

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vqa-ai/go-nima/images"
	"github.com/vqa-ai/go-nima/inference/providers"
)

const (
	// DefaultModelPath is where the scoring model lives when no explicit
	// path is configured, relative to the working directory.
	DefaultModelPath = "model/nima_mobilenet.onnx"

	// DefaultInputSize is the square input edge of the MobileNet topology.
	DefaultInputSize = 224

	// EnvModelPath overrides the model path from the environment.
	EnvModelPath = "NIMA_MODEL_PATH"

	// EnvConfigPath points at a YAML config file from the environment.
	EnvConfigPath = "NIMA_CONFIG"
)

// LayoutAuto asks the engine to infer the tensor layout from the model's
// declared input shape.
const LayoutAuto images.Layout = "auto"

// Decoder selects the image loading path.
type Decoder string

const (
	// DecoderNative decodes with the pure-Go image decoders.
	DecoderNative Decoder = "native"
	// DecoderVips decodes and downscales through libvips.
	DecoderVips Decoder = "vips"
)

// Config carries everything needed to construct a scoring model. The model
// path is an explicit configuration value; nothing is derived from the
// executable location.
type Config struct {
	// Model is the path to the scoring model file. The file is handed to the
	// inference runtime opaquely, never parsed here.
	Model string `json:"model" yaml:"model"`

	// Engine selects the inference runtime. Defaults to ONNX Runtime.
	Engine EngineKind `json:"engine" yaml:"engine"`

	// InputName and OutputName bind specific graph nodes. Empty values are
	// discovered from the model file.
	InputName  string `json:"input_name" yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`

	// InputSize is the square model input edge in pixels. Used directly, or
	// as the fallback when the model declares dynamic spatial dimensions.
	InputSize int `json:"input_size" yaml:"input_size"`

	// Layout of the model input tensor: nchw, nhwc, or auto.
	Layout images.Layout `json:"layout" yaml:"layout"`

	// Normalization applied to pixels before inference. Defaults to the
	// MobileNet minus-one-to-one convention.
	Normalization images.Normalization `json:"normalization" yaml:"normalization"`

	// Mean and Std hold per-channel RGB statistics for the standardize
	// normalization. Ignored by the other modes.
	Mean [images.Channels]float32 `json:"mean" yaml:"mean"`
	Std  [images.Channels]float32 `json:"std" yaml:"std"`

	// Softmax applies a softmax to the raw model output before scoring, for
	// exports whose head ends at the dense logits.
	Softmax bool `json:"softmax" yaml:"softmax"`

	// Decoder selects the image loading path.
	Decoder Decoder `json:"decoder" yaml:"decoder"`

	// ORTLibrary pins the ONNX Runtime shared library path.
	ORTLibrary string `json:"ort_library" yaml:"ort_library"`

	// Provider selects the ONNX Runtime execution provider.
	Provider providers.Config `json:"provider" yaml:"provider"`

	// Tuning controls ONNX Runtime threading and execution mode.
	Tuning providers.Tuning `json:"tuning" yaml:"tuning"`

	// Verbose enables native runtime logging.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the configuration for the stock NIMA MobileNet
// export: 224x224 RGB input, minus-one-to-one normalization, softmax already
// in the graph.
func DefaultConfig() Config {
	return Config{
		Model:         DefaultModelPath,
		Engine:        EngineORT,
		InputSize:     DefaultInputSize,
		Layout:        LayoutAuto,
		Normalization: images.NormalizeMinusOneToOne,
		Decoder:       DecoderNative,
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
//
// Arguments:
//   - path: The config file location.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error when the file cannot be read or parsed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}

	return cfg, nil
}

// ApplyEnvironment overlays recognized environment variables. Flags still
// outrank the environment; callers apply them afterward.
func (c *Config) ApplyEnvironment() {
	if path := os.Getenv(EnvModelPath); path != "" {
		c.Model = path
	}
}

// Validate rejects configurations no engine can honor.
func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("model path is required")
	}
	if c.InputSize <= 0 {
		return errors.Errorf("input size %d, want a positive pixel count", c.InputSize)
	}

	switch c.Engine {
	case "", EngineORT, EngineOpenCV:
	default:
		return errors.Errorf("unknown engine %q", c.Engine)
	}

	switch c.Layout {
	case "", LayoutAuto, images.LayoutNCHW, images.LayoutNHWC:
	default:
		return errors.Errorf("unknown layout %q", c.Layout)
	}

	switch c.Normalization {
	case "", images.NormalizeNone, images.NormalizeZeroToOne, images.NormalizeMinusOneToOne:
	case images.NormalizeStandardize:
		for i := 0; i < images.Channels; i++ {
			if c.Std[i] == 0 {
				return errors.Errorf("standardize std for channel %d is zero", i)
			}
		}
	default:
		return errors.Errorf("unknown normalization %q", c.Normalization)
	}

	switch c.Decoder {
	case "", DecoderNative, DecoderVips:
	default:
		return errors.Errorf("unknown decoder %q", c.Decoder)
	}

	if _, err := providers.ParseBackend(string(c.Provider.Backend)); err != nil {
		return err
	}
	if err := c.Tuning.Validate(); err != nil {
		return err
	}

	// OpenCV DNN builds its input through BlobFromImage, which produces NCHW
	// blobs with a scalar mean and a single scale factor.
	if c.engine() == EngineOpenCV {
		if c.Layout == images.LayoutNHWC {
			return errors.New("the opencv engine produces nchw input blobs; nhwc is not available")
		}
		if c.Normalization == images.NormalizeStandardize {
			return errors.New("the opencv engine cannot apply per-channel standardize normalization")
		}
	}

	return nil
}

// engine returns the effective engine kind.
func (c Config) engine() EngineKind {
	if c.Engine == "" {
		return EngineORT
	}
	return c.Engine
}

// normalization returns the effective normalization.
func (c Config) normalization() images.Normalization {
	if c.Normalization == "" {
		return images.NormalizeMinusOneToOne
	}
	return c.Normalization
}

// layout returns the effective layout request.
func (c Config) layout() images.Layout {
	if c.Layout == "" {
		return LayoutAuto
	}
	return c.Layout
}

// decoder returns the effective decoder.
func (c Config) decoder() Decoder {
	if c.Decoder == "" {
		return DecoderNative
	}
	return c.Decoder
}
