// Package decode turns submitted files into the ordered canonical images the
// rest of the pipeline works on.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/imaging"
	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/outcome"
)

// RenderDPI is the resolution paginated documents are rasterized at.
const RenderDPI = 300

// ErrNoRenderer is reported for paginated files when no renderer is configured.
var ErrNoRenderer = errors.New("no page renderer configured")

// paginated lists the extensions rendered page by page.
var paginated = map[string]bool{
	".pdf":  true,
	".xps":  true,
	".oxps": true,
	".epub": true,
	".cbz":  true,
}

// PageRenderer opens paginated documents.
type PageRenderer interface {
	Open(data []byte) (Document, error)
}

// Document is an opened paginated document. Pages are numbered from 0.
type Document interface {
	NumPage() int
	RenderPage(n int, dpi int) (image.Image, error)
	Close() error
}

// Decoder converts files into canonical images.
type Decoder struct {
	renderer PageRenderer
	logger   *zap.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger used for skipped files and pages.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a Decoder. renderer may be nil, in which case paginated files are skipped.
func New(renderer PageRenderer, opts ...Option) *Decoder {
	d := &Decoder{renderer: renderer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsPaginated reports whether filename is rendered page by page (case-insensitive).
func IsPaginated(filename string) bool {
	return paginated[strings.ToLower(filepath.Ext(filename))]
}

// DecodeAll decodes files in key order and concatenates their images.
// Files that contribute nothing are logged and skipped.
func (d *Decoder) DecodeAll(files []models.SubmittedFile) [][]byte {
	var images [][]byte
	for _, f := range models.SortFiles(files) {
		res := d.DecodeFile(f)
		if res.Kind == outcome.Skipped {
			d.logger.Warn("file contributed no images",
				zap.String("key", f.Key), zap.String("filename", f.Filename), zap.Error(res.Reason))
			continue
		}
		images = append(images, res.Value...)
	}
	return images
}

// DecodeFile returns the canonical images of one file in page order.
// A single image whose full decode fails keeps its original bytes; a file that
// cannot be recognized or rendered at all is skipped.
func (d *Decoder) DecodeFile(f models.SubmittedFile) outcome.Result[[][]byte] {
	if len(f.Data) == 0 {
		return outcome.Skip[[][]byte](fmt.Errorf("%s is empty", f.Filename))
	}
	if IsPaginated(f.Filename) {
		return d.renderPages(f)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err != nil {
		return outcome.Skip[[][]byte](fmt.Errorf("%s is not a recognized image: %w", f.Filename, err))
	}
	res := imaging.Normalize(f.Data)
	if res.Degraded() {
		d.logger.Warn("normalization skipped, keeping original bytes",
			zap.String("filename", f.Filename), zap.Error(res.Reason))
	}
	return outcome.Ok([][]byte{res.Value})
}

func (d *Decoder) renderPages(f models.SubmittedFile) outcome.Result[[][]byte] {
	if d.renderer == nil {
		return outcome.Skip[[][]byte](ErrNoRenderer)
	}
	doc, err := d.renderer.Open(f.Data)
	if err != nil {
		return outcome.Skip[[][]byte](fmt.Errorf("open %s: %w", f.Filename, err))
	}
	defer doc.Close()

	n := doc.NumPage()
	images := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.RenderPage(i, RenderDPI)
		if err != nil {
			d.logger.Warn("page render failed", zap.String("filename", f.Filename), zap.Int("page", i+1), zap.Error(err))
			continue
		}
		data, err := imaging.EncodeCanonical(img)
		if err != nil {
			d.logger.Warn("page encode failed", zap.String("filename", f.Filename), zap.Int("page", i+1), zap.Error(err))
			continue
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return outcome.Skip[[][]byte](fmt.Errorf("no page of %s could be rendered", f.Filename))
	}
	return outcome.Ok(images)
}
