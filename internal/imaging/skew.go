package imaging

import (
	"errors"
	"image"
	"math"
	"sort"
)

// ErrNoForeground is returned when an image holds no pixels to measure skew on.
var ErrNoForeground = errors.New("no foreground pixels")

type point struct{ x, y float64 }

// EstimateSkew returns the dominant text angle of img in degrees, folded into
// (-45, 45]. Foreground is the minority class after an Otsu threshold, and the
// angle is the orientation of the minimum-area rectangle enclosing it.
func EstimateSkew(img *image.Gray) (float64, error) {
	pts := foregroundExtremes(img)
	if len(pts) < 2 {
		return 0, ErrNoForeground
	}
	hull := convexHull(pts)
	if len(hull) < 2 {
		return 0, ErrNoForeground
	}
	return foldAngle(minAreaAngle(hull)), nil
}

// foldAngle maps any angle in degrees into (-45, 45].
func foldAngle(deg float64) float64 {
	a := math.Mod(deg, 90)
	if a < 0 {
		a += 90
	}
	if a > 45 {
		a -= 90
	}
	return a
}

// otsuThreshold returns the level t maximising between-class variance for
// the split [0, t] and (t, 255].
func otsuThreshold(hist *[256]int, total int) int {
	var sumAll float64
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}
	var sumB float64
	wB := 0
	best, bestVar := 0, -1.0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return best
}

// foregroundExtremes returns the leftmost and rightmost foreground pixel of
// every row. Those are enough to build the convex hull of the foreground.
func foregroundExtremes(img *image.Gray) []point {
	b := img.Bounds()
	var hist [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return nil
	}
	t := otsuThreshold(&hist, total)
	dark := 0
	for i := 0; i <= t; i++ {
		dark += hist[i]
	}
	if dark == 0 || dark == total {
		return nil
	}
	isFg := func(v uint8) bool { return int(v) > t }
	if dark <= total-dark {
		isFg = func(v uint8) bool { return int(v) <= t }
	}

	var pts []point
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		left, right := -1, -1
		for x := 0; x < b.Dx(); x++ {
			if isFg(row[x]) {
				if left < 0 {
					left = x
				}
				right = x
			}
		}
		if left < 0 {
			continue
		}
		pts = append(pts, point{float64(left), float64(y)})
		if right != left {
			pts = append(pts, point{float64(right), float64(y)})
		}
	}
	return pts
}

func cross(o, a, b point) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

// convexHull is Andrew's monotone chain; collinear points are dropped.
func convexHull(pts []point) []point {
	sorted := make([]point, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].x != sorted[j].x {
			return sorted[i].x < sorted[j].x
		}
		return sorted[i].y < sorted[j].y
	})
	uniq := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return uniq
	}
	hull := make([]point, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// minAreaAngle returns the direction, in degrees, of the hull edge that the
// minimum-area enclosing rectangle is flush with.
func minAreaAngle(hull []point) float64 {
	bestArea := math.Inf(1)
	bestAngle := 0.0
	n := len(hull)
	for i := 0; i < n; i++ {
		p, q := hull[i], hull[(i+1)%n]
		dx, dy := q.x-p.x, q.y-p.y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		ux, uy := dx/length, dy/length
		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, r := range hull {
			u := r.x*ux + r.y*uy
			v := -r.x*uy + r.y*ux
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}
		area := (maxU - minU) * (maxV - minV)
		if area < bestArea-1e-9 {
			bestArea = area
			bestAngle = math.Atan2(dy, dx) * 180 / math.Pi
		}
	}
	return bestAngle
}
