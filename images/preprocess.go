package images

import (
	"image"

	"github.com/pkg/errors"
)

// Normalization defines how raw pixel values are scaled before inference.
type Normalization string

const (
	// NormalizeNone keeps pixel values in [0, 255].
	NormalizeNone Normalization = "none"
	// NormalizeZeroToOne scales pixel values to [0, 1].
	NormalizeZeroToOne Normalization = "zero-to-one"
	// NormalizeMinusOneToOne scales pixel values to [-1, 1] via
	// (x / 127.5) - 1, the MobileNet preprocessing convention.
	NormalizeMinusOneToOne Normalization = "minus-one-to-one"
	// NormalizeStandardize subtracts per-channel means and divides by
	// per-channel standard deviations.
	NormalizeStandardize Normalization = "standardize"
)

// Layout defines the element ordering of the produced tensor.
type Layout string

const (
	// LayoutNCHW orders elements channel-first, the usual ONNX convention.
	LayoutNCHW Layout = "nchw"
	// LayoutNHWC orders elements channel-last, the usual TensorFlow
	// convention.
	LayoutNHWC Layout = "nhwc"
)

// Channels is the color channel count of a model input tensor. Inputs are
// always RGB.
const Channels = 3

// TensorConfig describes how a decoded image becomes a model input tensor.
type TensorConfig struct {
	// Width and Height of the model input in pixels.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// Normalization applied to every extracted pixel value.
	Normalization Normalization `json:"normalization" yaml:"normalization"`

	// Layout of the produced tensor.
	Layout Layout `json:"layout" yaml:"layout"`

	// Mean and Std hold per-channel RGB values for NormalizeStandardize.
	// Ignored by the other normalization modes.
	Mean [Channels]float32 `json:"mean" yaml:"mean"`
	Std  [Channels]float32 `json:"std" yaml:"std"`
}

// TensorLen returns the number of float32 elements the configured tensor
// holds.
func (c TensorConfig) TensorLen() int {
	return c.Width * c.Height * Channels
}

// Validate checks the configuration for values no tensor conversion can
// honor.
func (c TensorConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Errorf("invalid input dimensions %dx%d", c.Width, c.Height)
	}

	switch c.Normalization {
	case NormalizeNone, NormalizeZeroToOne, NormalizeMinusOneToOne:
	case NormalizeStandardize:
		for i := 0; i < Channels; i++ {
			if c.Std[i] == 0 {
				return errors.Errorf("standardize std for channel %d is zero", i)
			}
		}
	default:
		return errors.Errorf("unknown normalization %q", c.Normalization)
	}

	switch c.Layout {
	case LayoutNCHW, LayoutNHWC:
	default:
		return errors.Errorf("unknown layout %q", c.Layout)
	}

	return nil
}

// ToTensor converts img into a freshly allocated tensor laid out per cfg.
//
// Arguments:
// - img: A decoded image. Resampled when its bounds differ from the config.
// - cfg: Target dimensions, normalization, and layout.
//
// Returns the tensor or an error when the configuration is invalid.
func ToTensor(img image.Image, cfg TensorConfig) ([]float32, error) {
	dst := make([]float32, cfg.TensorLen())
	if err := ToTensorInto(img, cfg, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// ToTensorInto converts img into dst, which must hold exactly
// cfg.TensorLen() elements. dst is typically the preallocated input buffer of
// an inference session, so scoring allocates no per-image tensor.
func ToTensorInto(img image.Image, cfg TensorConfig, dst []float32) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "validating tensor config")
	}
	if img == nil {
		return errors.New("image is nil")
	}
	if len(dst) != cfg.TensorLen() {
		return errors.Errorf("destination holds %d floats, tensor needs %d", len(dst), cfg.TensorLen())
	}

	bounds := img.Bounds()
	if bounds.Dx() != cfg.Width || bounds.Dy() != cfg.Height {
		img = Resample(img, cfg.Width, cfg.Height)
		bounds = img.Bounds()
	}

	plane := cfg.Width * cfg.Height

	i := 0
	for y := bounds.Min.Y; y < bounds.Min.Y+cfg.Height; y++ {
		for x := bounds.Min.X; x < bounds.Min.X+cfg.Width; x++ {
			r, g, b, _ := img.At(x, y).RGBA()

			// RGBA returns 16-bit components; shift down to 8-bit.
			px := [Channels]float32{
				float32(r >> 8),
				float32(g >> 8),
				float32(b >> 8),
			}
			for c := 0; c < Channels; c++ {
				px[c] = normalize(px[c], c, cfg)
			}

			if cfg.Layout == LayoutNCHW {
				dst[i] = px[0]
				dst[plane+i] = px[1]
				dst[2*plane+i] = px[2]
			} else {
				dst[i*Channels] = px[0]
				dst[i*Channels+1] = px[1]
				dst[i*Channels+2] = px[2]
			}
			i++
		}
	}

	return nil
}

func normalize(v float32, channel int, cfg TensorConfig) float32 {
	switch cfg.Normalization {
	case NormalizeZeroToOne:
		return v / 255.0
	case NormalizeMinusOneToOne:
		return (v / 127.5) - 1.0
	case NormalizeStandardize:
		return (v - cfg.Mean[channel]) / cfg.Std[channel]
	default:
		return v
	}
}
