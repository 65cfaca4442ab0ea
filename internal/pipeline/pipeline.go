// Package pipeline runs one submission end to end: decode, OCR, structuring,
// validation, face detection and persistence.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/face"
	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/storage"
	"github.com/hyperjump/idscan/internal/validate"
)

var (
	// ErrNoFiles is returned when a submission carries no files.
	ErrNoFiles = errors.New("no files submitted")
	// ErrNoImages is returned when no submitted file produced an image.
	ErrNoImages = errors.New("no valid images could be processed from the provided file(s)")
	// ErrStructuring wraps the failure reported by the structuring engine.
	ErrStructuring = errors.New("structuring failed")
)

// Decoder turns submitted files into ordered canonical images.
type Decoder interface {
	DecodeAll(files []models.SubmittedFile) [][]byte
}

// TextExtractor produces the raw text of a run's images.
type TextExtractor interface {
	Extract(ctx context.Context, images [][]byte) string
}

// Structurer converts raw text and base64 images into a record; failures come back as error records.
type Structurer interface {
	Structure(ctx context.Context, rawText string, images []string) models.Record
}

// FaceLocator finds the document portrait.
type FaceLocator interface {
	Locate(images [][]byte) (face.Match, bool)
}

// TextSource supplies text the files already carry, such as a PDF text layer.
type TextSource interface {
	Text(files []models.SubmittedFile) string
}

// EmbeddedTextMarker separates OCR output from text read out of the files themselves.
const EmbeddedTextMarker = "\n--- EMBEDDED DOCUMENT TEXT ---\n"

// Indexer makes persisted documents searchable.
type Indexer interface {
	IndexDocument(ctx context.Context, doc *models.ProcessedDocument) error
}

// Input is one submission.
type Input struct {
	DocType string
	Files   []models.SubmittedFile
}

// Result describes a successful run.
type Result struct {
	DocumentID int64
	Record     models.Record
	RawText    string
	ImageCount int
	FaceFound  bool
}

// Processor sequences the pipeline stages. It holds no per-run state and can
// serve concurrent runs.
type Processor struct {
	decoder    Decoder
	ocr        TextExtractor
	structurer Structurer
	faces      FaceLocator
	store      storage.Store
	index      Indexer
	text       TextSource
	logger     *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithIndex indexes every persisted document. Index failures never fail a run.
func WithIndex(idx Indexer) Option {
	return func(p *Processor) { p.index = idx }
}

// WithTextSource appends embedded file text after the OCR output.
func WithTextSource(src TextSource) Option {
	return func(p *Processor) { p.text = src }
}

// New returns a Processor over the given stages.
func New(decoder Decoder, ocr TextExtractor, structurer Structurer, faces FaceLocator, store storage.Store, opts ...Option) *Processor {
	p := &Processor{
		decoder:    decoder,
		ocr:        ocr,
		structurer: structurer,
		faces:      faces,
		store:      store,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one submission and persists the result. Stages run strictly in
// order; per-image failures degrade inside their stage, while an empty image
// set, a structuring failure or a storage failure end the run with an error
// and nothing persisted.
func (p *Processor) Run(ctx context.Context, in Input, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = discardProgress{}
	}
	if len(in.Files) == 0 {
		return nil, ErrNoFiles
	}
	start := time.Now()
	files := models.SortFiles(in.Files)
	originals := make([][]byte, len(files))
	for i, f := range files {
		originals[i] = f.Data
	}

	images := p.decoder.DecodeAll(files)
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	p.logger.Debug("decoded submission", zap.Int("files", len(files)), zap.Int("images", len(images)))

	sink.Progress(StatusOCR)
	rawText := p.ocr.Extract(ctx, images)
	if p.text != nil {
		if embedded := p.text.Text(files); embedded != "" {
			rawText += EmbeddedTextMarker + embedded
		}
	}

	sink.Progress(StatusStructuring)
	encoded := make([]string, len(images))
	for i, img := range images {
		encoded[i] = base64.StdEncoding.EncodeToString(img)
	}
	record := p.structurer.Structure(ctx, rawText, encoded)
	if msg, failed := record.Error(); failed {
		return nil, fmt.Errorf("%w: %s", ErrStructuring, msg)
	}

	sink.Progress(StatusValidating)
	record = validate.Record(record)

	sink.Progress(StatusFaces)
	match, found := p.faces.Locate(images)
	if found {
		p.logger.Debug("face located", zap.Int("page", match.Page), zap.Stringer("box", match.Box))
	}

	sink.Progress(StatusSaving)
	doc := &models.ProcessedDocument{
		DocType:        in.DocType,
		ExtractedData:  record,
		OriginalImages: originals,
	}
	if found {
		doc.FaceImage = match.Image
	}
	id, err := p.store.InsertDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	if p.index != nil {
		if err := p.index.IndexDocument(ctx, doc); err != nil {
			p.logger.Warn("failed to index document", zap.Int64("document_id", id), zap.Error(err))
		}
	}

	p.logger.Info("document processed",
		zap.Int64("document_id", id),
		zap.String("doc_type", in.DocType),
		zap.String("document_type", string(record.DocumentType())),
		zap.Int("images", len(images)),
		zap.Bool("face", found),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{
		DocumentID: id,
		Record:     record,
		RawText:    rawText,
		ImageCount: len(images),
		FaceFound:  found,
	}, nil
}
