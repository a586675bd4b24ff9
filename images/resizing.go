package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/chai2010/webp"
	"github.com/cshum/vipsgen/vips"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Resample scales img to exactly width x height using Lanczos3 resampling.
// Aspect ratio is not preserved; model inputs are a fixed square.
func Resample(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

// ResizeToImage decodes and downscales an encoded image through libvips,
// returning a Go-native image.Image.
//
// Arguments:
//   - data: The encoded image bytes.
//   - width: The width to resize the image toward.
//   - height: The height to resize the image toward.
//   - format: The encoding of data, which is also used for the re-encode
//     after resizing.
//
// Returns the resized image, fit within the target box with aspect ratio
// preserved. Exact model dimensions are enforced later during tensor
// conversion.
func ResizeToImage(data []byte, width, height int, format Format) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image data")
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	// Load the image from buffer.
	img, err := vips.NewImageFromBuffer(data, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, errors.Wrap(err, "loading image")
	}
	defer img.Close()

	// Resize the image in-place.
	err = img.ThumbnailImage(width, &vips.ThumbnailImageOptions{
		Height: height,
		FailOn: vips.FailOnError,
	})
	if err != nil {
		return nil, errors.Wrap(err, "resizing image")
	}

	// Export to an encoded buffer and re-decode into image.Image.
	switch format {
	case FormatJPEG:
		resized, err := img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{})
		if err != nil || len(resized) == 0 {
			return nil, errors.New("encoding resized JPEG")
		}
		return jpeg.Decode(bytes.NewReader(resized))
	case FormatPNG:
		resized, err := img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
		if err != nil || len(resized) == 0 {
			return nil, errors.New("encoding resized PNG")
		}
		return png.Decode(bytes.NewReader(resized))
	case FormatWebP:
		resized, err := img.WebpsaveBuffer(&vips.WebpsaveBufferOptions{})
		if err != nil || len(resized) == 0 {
			return nil, errors.New("encoding resized WebP")
		}
		return webp.Decode(bytes.NewReader(resized))
	default:
		return nil, errors.Errorf("unsupported image format: %s", format)
	}
}

// LoadResized reads the image at path and downscales it toward width x height
// through libvips. Large photos decode considerably faster this way than
// through DecodeFile.
func LoadResized(path string, width, height int) (image.Image, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading image %s", path)
	}

	format, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}

	img, err := ResizeToImage(data, width, height, format)
	if err != nil {
		return nil, "", err
	}

	return img, format, nil
}
