package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
)

// DecodeBytes sniffs the format of data and decodes it into an image.Image
// using the pure-Go decoders.
//
// Arguments:
// - data: Encoded image bytes in JPEG, PNG, or WebP format.
//
// Returns the decoded image, the detected format, and any decode error.
func DecodeBytes(data []byte) (image.Image, Format, error) {
	if len(data) == 0 {
		return nil, "", errors.New("empty image data")
	}

	format, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}

	var img image.Image
	switch format {
	case FormatJPEG:
		img, err = jpeg.Decode(bytes.NewReader(data))
	case FormatPNG:
		img, err = png.Decode(bytes.NewReader(data))
	case FormatWebP:
		img, err = webp.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "decoding %s image", format)
	}

	return img, format, nil
}

// DecodeFile reads and decodes the image at path.
func DecodeFile(path string) (image.Image, Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "reading image %s", path)
	}
	return DecodeBytes(data)
}
