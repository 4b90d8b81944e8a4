package upload

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeKeepsSmallImage(t *testing.T) {
	raw := pngBytes(t, 20, 10)

	img, err := Decode(raw, Options{MaxEdge: 100})
	require.NoError(t, err)

	assert.Equal(t, "image/png", img.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), img.Data)
}

func TestDecodeDownscalesLargeImage(t *testing.T) {
	raw := pngBytes(t, 100, 50)

	img, err := Decode(raw, Options{MaxEdge: 40})
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)

	decoded, err := base64.StdEncoding.DecodeString(img.Data)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(decoded))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
}

func TestDecodeRejectsNonImage(t *testing.T) {
	cases := map[string][]byte{
		"text":   []byte("just some text"),
		"prose":  []byte("hello, definitely not an image"),
		"binary": {0, 1, 2, 3, 0xff, 0xfe, 0x10},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(raw, Options{MaxEdge: 100})
			assert.ErrorIs(t, err, ErrNotImage)
		})
	}

	_, err := Decode(nil, Options{})
	assert.Error(t, err)
}

func TestDetectMime(t *testing.T) {
	mimeType, ok := DetectMime(pngBytes(t, 2, 2))
	assert.True(t, ok)
	assert.Equal(t, "image/png", mimeType)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)), nil))
	mimeType, ok = DetectMime(buf.Bytes())
	assert.True(t, ok)
	assert.Equal(t, "image/jpeg", mimeType)

	_, ok = DetectMime([]byte("GIF but not really"))
	assert.False(t, ok)
}
