package decode

import (
	"errors"
	"image"
)

// MockRenderer serves fixed page images for tests. Every Open returns the same
// pages; pages listed in FailPages fail to render.
type MockRenderer struct {
	Pages     []image.Image
	OpenErr   error
	FailPages map[int]bool
	Opened    int
}

// Open returns a document over r.Pages, or r.OpenErr when set.
func (r *MockRenderer) Open(data []byte) (Document, error) {
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	r.Opened++
	return &mockDocument{r: r}, nil
}

type mockDocument struct {
	r *MockRenderer
}

func (d *mockDocument) NumPage() int { return len(d.r.Pages) }

func (d *mockDocument) RenderPage(n int, dpi int) (image.Image, error) {
	if d.r.FailPages[n] {
		return nil, errors.New("mock page failure")
	}
	return d.r.Pages[n], nil
}

func (d *mockDocument) Close() error { return nil }
