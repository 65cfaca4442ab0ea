// Package imaging converts uploaded images into the canonical form used by the
// pipeline and prepares them for text recognition.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/hyperjump/idscan/internal/outcome"
)

// JPEGQuality is the quality of every canonical image.
const JPEGQuality = 95

// Normalize re-encodes any decodable image as an opaque JPEG. When data cannot
// be decoded or encoded the original bytes come back as a fallback.
func Normalize(data []byte) outcome.Result[[]byte] {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return outcome.Fall(data, fmt.Errorf("decode image: %w", err))
	}
	out, err := EncodeCanonical(img)
	if err != nil {
		return outcome.Fall(data, err)
	}
	return outcome.Ok(out)
}

// EncodeCanonical flattens img and encodes it as a JPEG at JPEGQuality.
func EncodeCanonical(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Flatten(img), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Flatten composites img over a white background, dropping alpha.
// The result is anchored at the origin.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
