package decode

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer renders PDF, XPS, EPUB and CBZ documents with MuPDF.
type FitzRenderer struct{}

// Open parses data as a document; the format is detected from its content.
func (FitzRenderer) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("fitz open: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPage() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(n int, dpi int) (image.Image, error) {
	img, err := d.doc.ImageDPI(n, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", n+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
