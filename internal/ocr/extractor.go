package ocr

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/fileid"
	"github.com/hyperjump/idscan/internal/imaging"
	"github.com/hyperjump/idscan/internal/outcome"
)

// ConfidenceThreshold is the line confidence a line must exceed to be kept.
const ConfidenceThreshold = 0.80

// PageMarker returns the separator written before the text of image n (1-based).
func PageMarker(n int) string {
	return fmt.Sprintf("\n--- TEXT FROM PAGE/IMAGE %d ---\n", n)
}

// Extractor runs enhancement and recognition over a run's images.
type Extractor struct {
	engine  Engine
	enhance func([]byte) outcome.Result[[]byte]
	cache   *LineCache
	logger  *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for degraded pages.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache reuses recognized lines for images seen before.
func WithCache(c *LineCache) Option {
	return func(e *Extractor) { e.cache = c }
}

// WithEnhancer replaces the pre-recognition image enhancement.
func WithEnhancer(fn func([]byte) outcome.Result[[]byte]) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.enhance = fn
		}
	}
}

// NewExtractor returns an Extractor over engine. A nil engine yields empty pages.
func NewExtractor(engine Engine, opts ...Option) *Extractor {
	e := &Extractor{engine: engine, enhance: imaging.Enhance, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the raw text of images: one page marker per image, in order,
// each followed by that image's confident lines joined by newlines. A page
// that fails recognition keeps its marker and contributes no text.
func (e *Extractor) Extract(ctx context.Context, images [][]byte) string {
	var b strings.Builder
	for i, img := range images {
		b.WriteString(PageMarker(i + 1))
		res := e.Page(ctx, img)
		if res.Kind == outcome.Skipped {
			e.logger.Warn("ocr failed for page", zap.Int("page", i+1), zap.Error(res.Reason))
			continue
		}
		b.WriteString(res.Value)
	}
	return b.String()
}

// Page recognizes one image and returns its confident lines joined by newlines.
func (e *Extractor) Page(ctx context.Context, image []byte) outcome.Result[string] {
	lines, err := e.recognize(ctx, image)
	if err != nil {
		return outcome.Skip[string](err)
	}
	return outcome.Ok(strings.Join(Confident(lines, ConfidenceThreshold), "\n"))
}

func (e *Extractor) recognize(ctx context.Context, image []byte) ([]Line, error) {
	if e.engine == nil {
		return nil, ErrUnavailable
	}
	var key string
	if e.cache != nil {
		key = fileid.ContentID(image)
		if lines, ok := e.cache.Get(key); ok {
			return lines, nil
		}
	}
	enhanced := e.enhance(image)
	if enhanced.Degraded() {
		e.logger.Debug("enhancement skipped", zap.Stringer("kind", enhanced.Kind), zap.Error(enhanced.Reason))
	}
	lines, err := e.engine.Recognize(ctx, enhanced.Value)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(key, lines)
	}
	return lines, nil
}

// Confident returns the text of lines whose confidence is strictly above threshold.
func Confident(lines []Line, threshold float64) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Confidence > threshold {
			out = append(out, l.Text)
		}
	}
	return out
}
