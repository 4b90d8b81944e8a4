package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"lookbook-studio/internal/lookbook"
)

var ErrNotImage = errors.New("uploaded file is not an image")

type Options struct {
	// MaxEdge downscales images whose longer side exceeds it. Zero keeps the
	// original bytes.
	MaxEdge int
}

// Decode turns raw file bytes into an UploadedImage. The MIME type comes
// from the content; bytes that are not a recognisable image are rejected
// with ErrNotImage whatever the client claimed.
func Decode(raw []byte, opts Options) (lookbook.UploadedImage, error) {
	if len(raw) == 0 {
		return lookbook.UploadedImage{}, errors.New("empty upload")
	}

	mimeType, ok := DetectMime(raw)
	if !ok {
		return lookbook.UploadedImage{}, ErrNotImage
	}

	if opts.MaxEdge > 0 {
		resized, outMime, ok, err := downscale(raw, opts.MaxEdge)
		if err != nil {
			return lookbook.UploadedImage{}, err
		}
		if ok {
			raw, mimeType = resized, outMime
		}
	}

	return lookbook.UploadedImage{
		Data:     base64.StdEncoding.EncodeToString(raw),
		MimeType: mimeType,
	}, nil
}

// DetectMime identifies the image kind from content alone. A registered
// decoder must read the header, or the sniffer must place it under image/.
func DetectMime(raw []byte) (string, bool) {
	if _, format, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		return "image/" + format, true
	}
	if sniffed := cleanMime(http.DetectContentType(raw)); strings.HasPrefix(sniffed, "image/") {
		return sniffed, true
	}
	return "", false
}

func cleanMime(value string) string {
	value = strings.TrimSpace(value)
	if before, _, ok := strings.Cut(value, ";"); ok {
		value = strings.TrimSpace(before)
	}
	return strings.ToLower(value)
}

// downscale reports ok=false when the image already fits or its format is
// one imaging cannot decode; the caller then keeps the original bytes.
func downscale(raw []byte, maxEdge int) ([]byte, string, bool, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", false, nil
	}
	if cfg.Width <= maxEdge && cfg.Height <= maxEdge {
		return nil, "", false, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", false, fmt.Errorf("decode image: %w", err)
	}

	var resized image.Image
	if cfg.Width >= cfg.Height {
		resized = imaging.Resize(img, maxEdge, 0, imaging.Lanczos)
	} else {
		resized = imaging.Resize(img, 0, maxEdge, imaging.Lanczos)
	}

	outFormat, outMime := imaging.JPEG, "image/jpeg"
	if format == "png" || format == "gif" {
		outFormat, outMime = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, outFormat, imaging.JPEGQuality(90)); err != nil {
		return nil, "", false, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), outMime, true, nil
}
