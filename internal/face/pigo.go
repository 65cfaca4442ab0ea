package face

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoConfig tunes the cascade scan.
type PigoConfig struct {
	MinSize     int     // smallest face side in pixels
	MaxSize     int     // largest face side; 0 means the image's shorter side
	ShiftFactor float64 // sliding window step relative to window size
	ScaleFactor float64 // window growth between scales
	IoU         float64 // overlap above which detections are merged
	MinQuality  float32 // detections scoring below this are dropped
}

// DefaultPigoConfig mirrors a 1.1 scale step with 30px minimum faces.
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:     30,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinQuality:  5.0,
	}
}

// PigoClassifier detects faces with a pixel-intensity-comparison cascade.
type PigoClassifier struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
}

// LoadPigoClassifier reads a cascade file (e.g. "facefinder") from path.
func LoadPigoClassifier(path string, cfg PigoConfig) (*PigoClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	return NewPigoClassifier(data, cfg)
}

// NewPigoClassifier unpacks cascade. Zero config fields take DefaultPigoConfig values.
func NewPigoClassifier(cascade []byte, cfg PigoConfig) (*PigoClassifier, error) {
	def := DefaultPigoConfig()
	if cfg.MinSize <= 0 {
		cfg.MinSize = def.MinSize
	}
	if cfg.ShiftFactor <= 0 {
		cfg.ShiftFactor = def.ShiftFactor
	}
	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = def.ScaleFactor
	}
	if cfg.IoU <= 0 {
		cfg.IoU = def.IoU
	}
	if cfg.MinQuality <= 0 {
		cfg.MinQuality = def.MinQuality
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &PigoClassifier{classifier: classifier, cfg: cfg}, nil
}

// Detect returns square face boxes, clipped to the image.
func (c *PigoClassifier) Detect(gray *image.Gray) []image.Rectangle {
	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()
	if cols == 0 || rows == 0 {
		return nil
	}
	pixels := gray.Pix
	if gray.Stride != cols || b.Min != (image.Point{}) {
		pixels = make([]uint8, 0, cols*rows)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := gray.PixOffset(b.Min.X, y)
			pixels = append(pixels, gray.Pix[off:off+cols]...)
		}
	}
	maxSize := c.cfg.MaxSize
	if maxSize <= 0 || maxSize > min(cols, rows) {
		maxSize = min(cols, rows)
	}
	params := pigo.CascadeParams{
		MinSize:     c.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: c.cfg.ShiftFactor,
		ScaleFactor: c.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels[:cols*rows],
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}
	dets := c.classifier.RunCascade(params, 0.0)
	dets = c.classifier.ClusterDetections(dets, c.cfg.IoU)

	bounds := image.Rect(0, 0, cols, rows)
	var boxes []image.Rectangle
	for _, d := range dets {
		if d.Q < c.cfg.MinQuality {
			continue
		}
		half := d.Scale / 2
		r := image.Rect(d.Col-half, d.Row-half, d.Col-half+d.Scale, d.Row-half+d.Scale).Intersect(bounds)
		if !r.Empty() {
			boxes = append(boxes, r)
		}
	}
	return boxes
}
