//go:build cgo
// +build cgo

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine recognizes text lines with Tesseract. Requires CGO and libtesseract.
// It holds one client per concurrent caller because a client keeps per-image state.
type TesseractEngine struct {
	pool *handlePool[*gosseract.Client]
}

// NewTesseractEngine creates an engine for the given languages (e.g. "eng", "ara")
// with poolSize clients, normally one per worker.
func NewTesseractEngine(languages []string, poolSize int) (*TesseractEngine, error) {
	pool, err := newHandlePool(poolSize, func() (*gosseract.Client, error) {
		return newTesseractClient(languages)
	}, (*gosseract.Client).Close)
	if err != nil {
		return nil, err
	}
	return &TesseractEngine{pool: pool}, nil
}

func newTesseractClient(languages []string) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("set tesseract languages: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		client.Close()
		return nil, fmt.Errorf("set page segmentation mode: %w", err)
	}
	return client, nil
}

// Recognize returns the text lines of image with Tesseract's line confidence scaled to [0, 1].
func (t *TesseractEngine) Recognize(ctx context.Context, image []byte) ([]Line, error) {
	client, err := t.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer t.pool.release(client)

	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize lines: %w", err)
	}
	lines := make([]Line, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		lines = append(lines, Line{Text: text, Confidence: b.Confidence / 100})
	}
	return lines, nil
}

// Close releases every Tesseract client.
func (t *TesseractEngine) Close() error {
	return t.pool.close()
}
