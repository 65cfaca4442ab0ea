package face

import (
	"image"
	"sync/atomic"
)

// MockClassifier returns scripted boxes for tests.
type MockClassifier struct {
	Func  func(gray *image.Gray) []image.Rectangle
	calls atomic.Int64
}

// Detect counts the call and delegates to Func.
func (m *MockClassifier) Detect(gray *image.Gray) []image.Rectangle {
	m.calls.Add(1)
	if m.Func == nil {
		return nil
	}
	return m.Func(gray)
}

// Calls returns how many images were scanned.
func (m *MockClassifier) Calls() int {
	return int(m.calls.Load())
}
