// Package ocr recognizes text lines in page images and assembles a run's raw text.
package ocr

import (
	"context"
	"errors"
)

// ErrUnavailable is reported for every page when no engine is configured.
var ErrUnavailable = errors.New("ocr engine unavailable")

// Line is one recognized text line. Confidence is in [0, 1].
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Engine recognizes text lines in one encoded image, in reading order.
// Implementations are shared by all runs and must be safe for concurrent use.
type Engine interface {
	Recognize(ctx context.Context, image []byte) ([]Line, error)
	Close() error
}
