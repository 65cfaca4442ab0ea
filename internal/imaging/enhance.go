package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/hyperjump/idscan/internal/outcome"
)

const (
	// ClipLimit bounds each tile histogram during local equalization.
	ClipLimit = 2.0
	// TileGrid is the number of tiles per axis used by local equalization.
	TileGrid = 8
)

// Enhance prepares one image for recognition: grayscale, local contrast
// equalization, then deskew. The result is a PNG. On any failure the input
// bytes come back unchanged as a fallback.
func Enhance(data []byte) outcome.Result[[]byte] {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return outcome.Fall(data, fmt.Errorf("decode image: %w", err))
	}
	gray := Grayscale(img)
	eq := EqualizeCLAHE(gray, ClipLimit, TileGrid)
	angle, err := EstimateSkew(eq)
	if err != nil {
		return outcome.Fall(data, fmt.Errorf("estimate skew: %w", err))
	}
	out := eq
	if math.Abs(angle) > 1e-6 {
		out = Rotate(eq, -angle)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return outcome.Fall(data, fmt.Errorf("encode png: %w", err))
	}
	return outcome.Ok(buf.Bytes())
}

// Grayscale converts img to a single-channel intensity image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.YCbCr:
		// Y is already the BT.601 luma.
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				dst.Pix[y*dst.Stride+x] = src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)]
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				dst.Pix[y*dst.Stride+x] = c.Y
			}
		}
	}
	return dst
}
