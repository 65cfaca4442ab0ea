//go:build !cgo
// +build !cgo

package ocr

import (
	"context"
	"errors"
)

// TesseractEngine stub type when built without CGO (see tesseract.go for the real engine).
type TesseractEngine struct{}

// NewTesseractEngine returns an error when built without CGO (Tesseract not available).
func NewTesseractEngine(_ []string, _ int) (*TesseractEngine, error) {
	return nil, errors.New("tesseract engine requires CGO; build with CGO_ENABLED=1 and libtesseract")
}

// Recognize is never reached; NewTesseractEngine always fails.
func (t *TesseractEngine) Recognize(context.Context, []byte) ([]Line, error) {
	return nil, ErrUnavailable
}

// Close is a no-op.
func (t *TesseractEngine) Close() error { return nil }
