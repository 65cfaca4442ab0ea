package imaging

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotate turns the content of src by degrees about its centre using cubic
// interpolation. Samples that fall outside src repeat the nearest edge pixel.
// Positive angles rotate clockwise on screen (y grows downward).
func Rotate(src *image.Gray, degrees float64) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	rad := degrees * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w)/2, float64(h)/2

	// source to destination: d = R(p - c) + c
	s2d := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	padded := replicateBorder(src, rotationMargin(w, h, cos, sin))
	draw.CatmullRom.Transform(dst, s2d, padded, padded.Bounds(), draw.Src, nil)
	return dst
}

// rotationMargin returns how far outside the source the inverse-mapped
// destination reaches, plus the cubic kernel support.
func rotationMargin(w, h int, cos, sin float64) int {
	cx, cy := float64(w)/2, float64(h)/2
	corners := [4][2]float64{{0, 0}, {float64(w), 0}, {0, float64(h)}, {float64(w), float64(h)}}
	reach := 0.0
	for _, c := range corners {
		dx, dy := c[0]-cx, c[1]-cy
		// inverse rotation is the transpose
		sx := cos*dx + sin*dy + cx
		sy := -sin*dx + cos*dy + cy
		reach = math.Max(reach, math.Max(-sx, sx-float64(w)))
		reach = math.Max(reach, math.Max(-sy, sy-float64(h)))
	}
	return int(math.Ceil(reach)) + 3
}

// replicateBorder returns a copy of src (origin at 0,0) extended by margin
// pixels on each side with clamped edge values. The copy keeps src's
// coordinate system, so its bounds start at (-margin, -margin).
func replicateBorder(src *image.Gray, margin int) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	origin := src.Bounds().Min
	out := image.NewGray(image.Rect(-margin, -margin, w+margin, h+margin))
	for y := -margin; y < h+margin; y++ {
		sy := clampInt(y, 0, h-1)
		srow := src.Pix[src.PixOffset(origin.X, origin.Y+sy):]
		drow := out.Pix[out.PixOffset(-margin, y):]
		for x := -margin; x < w+margin; x++ {
			drow[x+margin] = srow[clampInt(x, 0, w-1)]
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
