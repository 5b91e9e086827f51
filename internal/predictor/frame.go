package predictor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	jpegQuality = 90

	// maxFramePixels rejects frames whose header claims an absurd size before
	// any pixel data is decoded.
	maxFramePixels = 50_000_000
)

var errFrameTooLarge = errors.New("image dimensions too large")

// stripDataURL drops everything up to and including the first comma, so
// "data:image/jpeg;base64,AAAA" becomes "AAAA".
func stripDataURL(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// decodeBase64 accepts standard base64 with or without padding. Whitespace
// (line-wrapped payloads) is ignored.
func decodeBase64(payload string) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, payload)
	s = strings.TrimRight(s, "=")
	b, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return b, nil
}

// decodeFrame decodes a JPEG, PNG, GIF, BMP, TIFF or WebP image, applies
// its EXIF orientation and returns it re-encoded as JPEG.
func decodeFrame(raw []byte) ([]byte, image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("cannot identify image file: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxFramePixels {
		return nil, image.Point{}, fmt.Errorf("%w: %dx%d", errFrameTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), img.Bounds().Size(), nil
}
