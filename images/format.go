// Package images - Image loading and preprocessing for model input.
package images

import (
	"bytes"

	"github.com/pkg/errors"
)

// Format represents supported image formats.
type Format string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG Format = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG Format = "png"
	// FormatWebP is the WebP image format.
	FormatWebP Format = "webp"
)

var (
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
)

// Sniff determines the image format from the leading bytes of data. It errors
// when the data does not start with a recognized JPEG, PNG, or WebP signature.
func Sniff(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG, nil
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 12 && bytes.Equal(data[8:12], webpMagic):
		return FormatWebP, nil
	default:
		return "", errors.New("unrecognized image format (want JPEG, PNG, or WebP)")
	}
}
