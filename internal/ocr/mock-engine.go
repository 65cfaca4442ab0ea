package ocr

import (
	"context"
	"sync/atomic"
)

// MockEngine is a scripted engine for tests. Func decides the lines for each
// image; a nil Func recognizes nothing.
type MockEngine struct {
	Func  func(image []byte) ([]Line, error)
	calls atomic.Int64
}

// Recognize counts the call and delegates to Func.
func (m *MockEngine) Recognize(ctx context.Context, image []byte) ([]Line, error) {
	m.calls.Add(1)
	if m.Func == nil {
		return nil, nil
	}
	return m.Func(image)
}

// Calls returns how many images were recognized.
func (m *MockEngine) Calls() int {
	return int(m.calls.Load())
}

// Close is a no-op.
func (m *MockEngine) Close() error { return nil }
