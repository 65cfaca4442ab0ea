package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/decode"
	"github.com/hyperjump/idscan/internal/face"
	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/ocr"
	"github.com/hyperjump/idscan/internal/outcome"
	"github.com/hyperjump/idscan/internal/storage"
	"github.com/hyperjump/idscan/internal/structure"
)

type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []structure.Request
}

func (g *fakeGenerator) Generate(ctx context.Context, req structure.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.reply, g.err
}

type recordingSink struct {
	statuses []string
}

func (s *recordingSink) Progress(status string) { s.statuses = append(s.statuses, status) }

type fakeIndex struct {
	docs []*models.ProcessedDocument
	err  error
}

func (f *fakeIndex) IndexDocument(ctx context.Context, doc *models.ProcessedDocument) error {
	f.docs = append(f.docs, doc)
	return f.err
}

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 180, 160, 255})
		}
	}
	return img
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	renderer   *decode.MockRenderer
	engine     *ocr.MockEngine
	gen        *fakeGenerator
	classifier *face.MockClassifier
	store      *storage.SQLiteStore
	proc       *Processor
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "idscan.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		renderer: &decode.MockRenderer{},
		engine: &ocr.MockEngine{Func: func([]byte) ([]ocr.Line, error) {
			return []ocr.Line{{Text: "Date of Birth: 15/03/1990", Confidence: 0.95}}, nil
		}},
		gen:        &fakeGenerator{reply: `{"document_type": "other", "date_of_birth": "15/03/1990", "additional_data": {}}`},
		classifier: &face.MockClassifier{},
		store:      store,
	}
	passthrough := func(b []byte) outcome.Result[[]byte] { return outcome.Ok(b) }
	f.proc = New(
		decode.New(f.renderer),
		ocr.NewExtractor(f.engine, ocr.WithEnhancer(passthrough)),
		structure.NewEngine(f.gen),
		face.NewLocator(f.classifier),
		store,
		append([]Option{WithLogger(zap.NewNop())}, opts...)...,
	)
	return f
}

func TestRunNormalizesDatesAndPersists(t *testing.T) {
	f := newFixture(t)
	f.classifier.Func = func(*image.Gray) []image.Rectangle {
		return []image.Rectangle{image.Rect(2, 2, 12, 12)}
	}
	photo := jpegBytes(t, solid(40, 30))
	sink := &recordingSink{}

	res, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "id.jpg", Data: photo}},
	}, sink)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Record["date_of_birth"] != "1990-03-15" {
		t.Errorf("date_of_birth = %v, want 1990-03-15", res.Record["date_of_birth"])
	}
	if !res.FaceFound {
		t.Error("expected a face")
	}

	want := []string{StatusOCR, StatusStructuring, StatusValidating, StatusFaces, StatusSaving}
	if strings.Join(sink.statuses, "|") != strings.Join(want, "|") {
		t.Errorf("statuses = %v, want %v", sink.statuses, want)
	}

	doc, err := f.store.GetDocument(context.Background(), res.DocumentID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc.DocType != "other" {
		t.Errorf("doc_type = %q", doc.DocType)
	}
	if doc.ExtractedData["date_of_birth"] != "1990-03-15" {
		t.Errorf("stored date_of_birth = %v", doc.ExtractedData["date_of_birth"])
	}
	if len(doc.FaceImage) == 0 {
		t.Error("expected stored face image")
	}
	if len(doc.OriginalImages) != 1 || !bytes.Equal(doc.OriginalImages[0], photo) {
		t.Error("original image not stored verbatim")
	}
}

func TestRunPaginatedDocument(t *testing.T) {
	f := newFixture(t)
	f.renderer.Pages = []image.Image{solid(10, 10), solid(20, 10), solid(30, 10)}
	pdf := []byte("%PDF-1.4 fake")

	res, err := f.proc.Run(context.Background(), Input{
		DocType: "passport",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "scan.pdf", Data: pdf}},
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.ImageCount != 3 {
		t.Fatalf("ImageCount = %d, want 3", res.ImageCount)
	}

	last := -1
	for n := 1; n <= 3; n++ {
		i := strings.Index(res.RawText, ocr.PageMarker(n))
		if i <= last {
			t.Fatalf("marker %d missing or out of order in %q", n, res.RawText)
		}
		last = i
	}
	if strings.Contains(res.RawText, ocr.PageMarker(4)) {
		t.Error("unexpected fourth marker")
	}

	if len(f.gen.requests) != 1 {
		t.Fatalf("model calls = %d, want 1", len(f.gen.requests))
	}
	imgs := f.gen.requests[0].Images
	if len(imgs) != 3 {
		t.Fatalf("model images = %d, want 3", len(imgs))
	}
	for i, want := range []int{10, 20, 30} {
		raw, err := base64.StdEncoding.DecodeString(imgs[i])
		if err != nil {
			t.Fatalf("image %d is not base64: %v", i, err)
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
		if err != nil {
			t.Fatalf("image %d does not decode: %v", i, err)
		}
		if cfg.Width != want {
			t.Errorf("image %d width = %d, want %d", i, cfg.Width, want)
		}
	}

	doc, err := f.store.GetDocument(context.Background(), res.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.OriginalImages) != 1 || !bytes.Equal(doc.OriginalImages[0], pdf) {
		t.Errorf("original images = %d, want the single PDF", len(doc.OriginalImages))
	}
	if doc.FaceImage != nil {
		t.Error("face image should be absent")
	}
}

func TestRunOrdersFilesByKey(t *testing.T) {
	f := newFixture(t)
	first := jpegBytes(t, solid(11, 11))
	second := jpegBytes(t, solid(22, 11))

	res, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files: []models.SubmittedFile{
			{Key: "file_001", Filename: "back.jpg", Data: second},
			{Key: "file_000", Filename: "front.jpg", Data: first},
		},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := f.store.GetDocument(context.Background(), res.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.OriginalImages) != 2 || !bytes.Equal(doc.OriginalImages[0], first) || !bytes.Equal(doc.OriginalImages[1], second) {
		t.Error("original images not stored in key order")
	}
}

func TestRunNoImagesFailsFast(t *testing.T) {
	f := newFixture(t)
	sink := &recordingSink{}

	_, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "junk.jpg", Data: []byte("not an image")}},
	}, sink)
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("err = %v, want ErrNoImages", err)
	}
	if f.engine.Calls() != 0 {
		t.Errorf("ocr calls = %d, want 0", f.engine.Calls())
	}
	if len(f.gen.requests) != 0 {
		t.Errorf("model calls = %d, want 0", len(f.gen.requests))
	}
	if len(sink.statuses) != 0 {
		t.Errorf("statuses = %v, want none", sink.statuses)
	}
}

func TestRunNoFiles(t *testing.T) {
	f := newFixture(t)
	if _, err := f.proc.Run(context.Background(), Input{DocType: "other"}, nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("err = %v, want ErrNoFiles", err)
	}
}

func TestRunStructuringFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.err = errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")

	_, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "id.jpg", Data: jpegBytes(t, solid(20, 20))}},
	}, nil)
	if !errors.Is(err, ErrStructuring) {
		t.Fatalf("err = %v, want ErrStructuring", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error %q does not carry the transport failure", err)
	}
	_, total, err := f.store.History(context.Background(), models.HistoryQuery{Page: 1, PerPage: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("persisted %d documents after failure", total)
	}
}

func TestRunIndexFailureDoesNotFailRun(t *testing.T) {
	idx := &fakeIndex{err: errors.New("index closed")}
	f := newFixture(t, WithIndex(idx))

	res, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "id.jpg", Data: jpegBytes(t, solid(20, 20))}},
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(idx.docs) != 1 || idx.docs[0].ID != res.DocumentID {
		t.Errorf("indexed %d documents", len(idx.docs))
	}
}

type staticText string

func (s staticText) Text([]models.SubmittedFile) string { return string(s) }

func TestRunAppendsEmbeddedText(t *testing.T) {
	f := newFixture(t, WithTextSource(staticText("NAME: LAYLA MANSOURI")))

	res, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "id.jpg", Data: jpegBytes(t, solid(20, 20))}},
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	ocrAt := strings.Index(res.RawText, "Date of Birth")
	embeddedAt := strings.Index(res.RawText, EmbeddedTextMarker+"NAME: LAYLA MANSOURI")
	if ocrAt < 0 || embeddedAt < ocrAt {
		t.Errorf("raw text = %q, want OCR text followed by embedded text", res.RawText)
	}
	if len(f.gen.requests) != 1 || !strings.Contains(f.gen.requests[0].Prompt, "LAYLA MANSOURI") {
		t.Error("embedded text did not reach the model prompt")
	}
}

func TestRunWithoutEmbeddedText(t *testing.T) {
	f := newFixture(t, WithTextSource(staticText("")))

	res, err := f.proc.Run(context.Background(), Input{
		DocType: "other",
		Files:   []models.SubmittedFile{{Key: "file_000", Filename: "id.jpg", Data: jpegBytes(t, solid(20, 20))}},
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.Contains(res.RawText, EmbeddedTextMarker) {
		t.Errorf("raw text = %q, want no embedded section", res.RawText)
	}
}

func TestProgressFunc(t *testing.T) {
	var got string
	ProgressFunc(func(s string) { got = s }).Progress(StatusComplete)
	if got != StatusComplete {
		t.Errorf("got %q", got)
	}
}
