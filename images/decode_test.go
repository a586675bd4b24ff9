package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		want       Format
		shouldFail bool
	}{
		{
			name: "JPEG",
			data: getJPEGBytes(t),
			want: FormatJPEG,
		},
		{
			name: "PNG",
			data: getPNGBytes(t),
			want: FormatPNG,
		},
		{
			name: "WebP",
			data: getWebPBytes(t),
			want: FormatWebP,
		},
		{
			name:       "Plain text",
			data:       []byte("definitely not an image"),
			shouldFail: true,
		},
		{
			name:       "Empty",
			data:       []byte{},
			shouldFail: true,
		},
		{
			name:       "RIFF without WebP marker",
			data:       []byte("RIFF0000WAVEfmt "),
			shouldFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, err := Sniff(tt.data)

			if tt.shouldFail {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "unrecognized image format")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, format)
			}
		})
	}
}

func TestDecodeBytes(t *testing.T) {
	tests := []struct {
		name     string
		getBytes func(t *testing.T) []byte
		want     Format
	}{
		{"JPEG", getJPEGBytes, FormatJPEG},
		{"PNG", getPNGBytes, FormatPNG},
		{"WebP", getWebPBytes, FormatWebP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := DecodeBytes(tt.getBytes(t))
			assert.NoError(t, err, "DecodeBytes should not error for valid input")
			require.NotNil(t, img)
			assert.Equal(t, tt.want, format)
			assert.Equal(t, 100, img.Bounds().Dx())
			assert.Equal(t, 100, img.Bounds().Dy())
		})
	}
}

func TestDecodeBytesEdgeCases(t *testing.T) {
	// Empty data
	img, _, err := DecodeBytes(nil)
	assert.Error(t, err, "Should error with empty image data")
	assert.Nil(t, img)
	assert.Contains(t, err.Error(), "empty image data")

	// Unknown signature
	img, _, err = DecodeBytes([]byte("not an image at all"))
	assert.Error(t, err, "Should error with an unknown signature")
	assert.Nil(t, img)

	// Valid signature, truncated body
	img, _, err = DecodeBytes(getJPEGBytes(t)[:24])
	assert.Error(t, err, "Should error with a truncated body")
	assert.Nil(t, img)
	assert.Contains(t, err.Error(), "decoding jpeg image")
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, getPNGBytes(t), 0o644))

	img, format, err := DecodeFile(path)
	assert.NoError(t, err, "DecodeFile should not error for a valid file")
	require.NotNil(t, img)
	assert.Equal(t, FormatPNG, format)
	assert.Equal(t, 100, img.Bounds().Dx())

	// Missing file
	_, _, err = DecodeFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err, "DecodeFile should error for a missing file")
	assert.Contains(t, err.Error(), "reading image")
}
