// Package structure turns raw OCR text and page images into a structured record
// by prompting a multimodal language model.
package structure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/pkg/utils"
)

// DefaultTimeout bounds one model call. Multimodal inference over many pages is slow.
const DefaultTimeout = 600 * time.Second

var (
	// ErrEmptyResponse is returned when the model replies with nothing.
	ErrEmptyResponse = errors.New("model response is empty")
	// ErrNoGenerator is returned when no model endpoint is configured.
	ErrNoGenerator = errors.New("no language model configured")
)

// Request is one generation call. Images are base64-encoded, in page order.
type Request struct {
	Prompt string
	Images []string
	Format string
}

// Generator is a language-model endpoint returning the raw reply text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Engine builds the prompt, calls the generator and parses its reply.
type Engine struct {
	gen     Generator
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEngine returns an Engine over gen.
func NewEngine(gen Generator, opts ...Option) *Engine {
	e := &Engine{gen: gen, timeout: DefaultTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Structure returns the record the model extracted from rawText and images.
// Any failure is reported as an error record rather than returned.
func (e *Engine) Structure(ctx context.Context, rawText string, images []string) models.Record {
	if e.gen == nil {
		return failure(ErrNoGenerator)
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	reply, err := e.gen.Generate(ctx, Request{Prompt: BuildPrompt(rawText), Images: images, Format: "json"})
	if err != nil {
		e.logger.Error("model call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return failure(err)
	}
	rec, err := ParseRecord(reply)
	if err != nil {
		e.logger.Error("model reply rejected", zap.String("reply", utils.Truncate(reply, 200)), zap.Error(err))
		return failure(err)
	}
	e.logger.Debug("document structured",
		zap.String("document_type", string(rec.DocumentType())),
		zap.Int("images", len(images)),
		zap.Duration("elapsed", time.Since(start)))
	return rec
}

func failure(err error) models.Record {
	return models.NewErrorRecord(fmt.Sprintf("language model failed to structure the text: %v", err))
}

// ParseRecord decodes a model reply into a record. Markdown code fences are
// tolerated; numbers keep their literal form.
func ParseRecord(reply string) (models.Record, error) {
	body := stripCodeFence(reply)
	if body == "" {
		return nil, ErrEmptyResponse
	}
	return models.DecodeRecord([]byte(body))
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
