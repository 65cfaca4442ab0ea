package decode

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/idscan/internal/models"
)

// TextLayer reads the text digital PDFs carry alongside their page images.
// Scanned PDFs have no text layer and contribute nothing.
type TextLayer struct{}

// Text returns the embedded text of every PDF in files, in key order.
// Files that are not PDFs or cannot be parsed are skipped.
func (TextLayer) Text(files []models.SubmittedFile) string {
	var parts []string
	for _, f := range models.SortFiles(files) {
		if strings.ToLower(filepath.Ext(f.Filename)) != ".pdf" {
			continue
		}
		text, err := pdfText(f.Data)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func pdfText(content []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse PDF: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(s)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return buf.String(), nil
}
