package imaging

import (
	"image"
	"math"
)

// EqualizeCLAHE applies contrast-limited adaptive histogram equalization on a
// grid x grid tiling. Each tile's histogram is clipped at clipLimit times the
// uniform bin height, the excess is spread over all bins, and pixel values are
// bilinearly interpolated between the four nearest tile mappings.
func EqualizeCLAHE(src *image.Gray, clipLimit float64, grid int) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	tilesX, tilesY := min(grid, w), min(grid, h)
	xs := tileEdges(w, tilesX)
	ys := tileEdges(h, tilesY)

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			luts[ty*tilesX+tx] = tileLUT(src, xs[tx], xs[tx+1], ys[ty], ys[ty+1], clipLimit)
		}
	}

	colT1, colT2, colW := interpWeights(w, tilesX)
	rowT1, rowT2, rowW := interpWeights(h, tilesY)
	for y := 0; y < h; y++ {
		ay := rowW[y]
		top, bottom := rowT1[y]*tilesX, rowT2[y]*tilesX
		srow := src.Pix[src.PixOffset(src.Bounds().Min.X, src.Bounds().Min.Y+y):]
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < w; x++ {
			v := srow[x]
			ax := colW[x]
			tl := float64(luts[top+colT1[x]][v])
			tr := float64(luts[top+colT2[x]][v])
			bl := float64(luts[bottom+colT1[x]][v])
			br := float64(luts[bottom+colT2[x]][v])
			val := (1-ay)*((1-ax)*tl+ax*tr) + ay*((1-ax)*bl+ax*br)
			drow[x] = clampByte(val)
		}
	}
	return dst
}

func tileEdges(n, tiles int) []int {
	edges := make([]int, tiles+1)
	for i := 0; i <= tiles; i++ {
		edges[i] = i * n / tiles
	}
	return edges
}

func tileLUT(src *image.Gray, x0, x1, y0, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	base := src.Bounds().Min
	for y := y0; y < y1; y++ {
		row := src.Pix[src.PixOffset(base.X+x0, base.Y+y):]
		for x := 0; x < x1-x0; x++ {
			hist[row[x]]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	limit := int(clipLimit * float64(area) / 256)
	if limit < 1 {
		limit = 1
	}
	clipped := 0
	for i := range hist {
		if hist[i] > limit {
			clipped += hist[i] - limit
			hist[i] = limit
		}
	}
	batch := clipped / 256
	residual := clipped - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = clampByte(float64(sum) * scale)
	}
	return lut
}

// interpWeights returns, per coordinate, the two neighbouring tile indices and
// the weight of the second one, measured from tile centres.
func interpWeights(n, tiles int) (first, second []int, weight []float64) {
	first = make([]int, n)
	second = make([]int, n)
	weight = make([]float64, n)
	size := float64(n) / float64(tiles)
	for i := 0; i < n; i++ {
		f := (float64(i)+0.5)/size - 0.5
		t1 := int(math.Floor(f))
		a := f - float64(t1)
		t2 := t1 + 1
		if t1 < 0 {
			t1, a = 0, 0
		}
		if t2 > tiles-1 {
			t2 = tiles - 1
		}
		if t1 > tiles-1 {
			t1 = tiles - 1
		}
		first[i], second[i], weight[i] = t1, t2, a
	}
	return first, second, weight
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
