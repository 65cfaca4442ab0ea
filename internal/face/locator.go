// Package face finds the portrait on a document and crops it.
package face

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/hyperjump/idscan/internal/imaging"
)

// Classifier returns candidate face boxes in gray's coordinates.
// Implementations are shared by all runs and must be safe for concurrent use.
type Classifier interface {
	Detect(gray *image.Gray) []image.Rectangle
}

// Match is the face chosen for a run.
type Match struct {
	Image []byte          // JPEG crop
	Page  int             // 1-based index of the image it came from
	Box   image.Rectangle // crop bounds within that image
}

// Locator scans images in order and crops the largest face of the first image that has one.
type Locator struct {
	classifier Classifier
	logger     *zap.Logger
}

// Option configures a Locator.
type Option func(*Locator)

// WithLogger sets the logger used for skipped images.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocator returns a Locator. A nil classifier never finds a face.
func NewLocator(c Classifier, opts ...Option) *Locator {
	l := &Locator{classifier: c, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the face crop and true, or false when no image has a face.
// Images that fail to decode or crop are skipped.
func (l *Locator) Locate(images [][]byte) (Match, bool) {
	if l.classifier == nil {
		return Match{}, false
	}
	for i, data := range images {
		m, found, err := l.scan(data)
		if err != nil {
			l.logger.Debug("face scan skipped image", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		if found {
			m.Page = i + 1
			return m, true
		}
	}
	return Match{}, false
}

func (l *Locator) scan(data []byte) (Match, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Match{}, false, fmt.Errorf("decode image: %w", err)
	}
	boxes := l.classifier.Detect(imaging.Grayscale(img))
	if len(boxes) == 0 {
		return Match{}, false, nil
	}
	box := Largest(boxes)
	crop, err := Crop(img, box)
	if err != nil {
		return Match{}, false, err
	}
	return Match{Image: crop, Box: box}, true, nil
}

// Largest returns the box with the greatest area; the first wins ties.
func Largest(boxes []image.Rectangle) image.Rectangle {
	var best image.Rectangle
	bestArea := -1
	for _, b := range boxes {
		if a := b.Dx() * b.Dy(); a > bestArea {
			best, bestArea = b, a
		}
	}
	return best
}

// Crop cuts box (relative to the image origin) out of img and encodes it as JPEG.
func Crop(img image.Image, box image.Rectangle) ([]byte, error) {
	r := box.Add(img.Bounds().Min).Intersect(img.Bounds())
	if r.Empty() {
		return nil, errors.New("face box outside image")
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: imaging.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode face: %w", err)
	}
	return buf.Bytes(), nil
}
