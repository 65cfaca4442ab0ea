package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/config"
	"github.com/hyperjump/idscan/internal/decode"
	"github.com/hyperjump/idscan/internal/face"
	"github.com/hyperjump/idscan/internal/index"
	"github.com/hyperjump/idscan/internal/ocr"
	"github.com/hyperjump/idscan/internal/pipeline"
	"github.com/hyperjump/idscan/internal/queue"
	"github.com/hyperjump/idscan/internal/storage"
	"github.com/hyperjump/idscan/internal/structure"
)

// Components holds initialized services.
type Components struct {
	Store     storage.Store
	Index     *index.BleveIndex
	Broker    queue.Broker
	Processor *pipeline.Processor

	closers []io.Closer
}

// Close releases every component in reverse order of creation.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

// initializeComponents opens storage, the search index and the broker. When
// withPipeline is set it also builds the processing pipeline a worker needs.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, withPipeline bool) (*Components, error) {
	c := &Components{}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store
	c.closers = append(c.closers, store)

	idx, err := index.NewBleveIndex(cfg.Storage.IndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize search index: %w", err)
	}
	c.Index = idx
	c.closers = append(c.closers, idx)

	broker, err := openBroker(ctx, cfg, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	c.Broker = broker
	c.closers = append(c.closers, broker)

	if withPipeline {
		proc, closers, err := buildProcessor(ctx, cfg, store, idx, logger)
		c.closers = append(c.closers, closers...)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Processor = proc
	}
	return c, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return storage.NewPostgresStore(ctx, cfg.Storage.DatabaseURL, storage.PostgresOptions{
			MaxRetries: 10,
			RetryDelay: 2 * time.Second,
			Logger:     logger,
		})
	default:
		return storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	}
}

func openBroker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (queue.Broker, error) {
	if cfg.Queue.Driver == "redis" {
		return queue.NewRedisBroker(ctx, queue.RedisConfig{
			Addr:      cfg.Queue.RedisAddr,
			Password:  cfg.Queue.RedisPassword,
			DB:        cfg.Queue.RedisDB,
			Prefix:    cfg.Queue.KeyPrefix,
			ResultTTL: cfg.Queue.ResultTTL,
		}, logger.Named("queue"))
	}
	b := queue.NewMemoryBroker(cfg.Queue.Capacity,
		queue.WithMemoryLogger(logger.Named("queue")),
		queue.WithResultTTL(cfg.Queue.ResultTTL))
	b.StartCleanup(ctx, time.Minute)
	return b, nil
}

func buildProcessor(ctx context.Context, cfg *config.Config, store storage.Store, idx *index.BleveIndex, logger *zap.Logger) (*pipeline.Processor, []io.Closer, error) {
	var closers []io.Closer

	var engine ocr.Engine
	if cfg.OCR.Engine == "tesseract" {
		te, err := ocr.NewTesseractEngine(cfg.OCR.Languages, cfg.Queue.Workers)
		if err != nil {
			logger.Warn("ocr engine unavailable, pages will carry no text", zap.Error(err))
		} else {
			engine = te
			closers = append(closers, te)
		}
	}
	extractor := ocr.NewExtractor(engine,
		ocr.WithLogger(logger.Named("ocr")),
		ocr.WithCache(ocr.NewLineCache(cfg.OCR.CacheSize)))

	gen, genCloser, err := newGenerator(ctx, cfg)
	if err != nil {
		return nil, closers, fmt.Errorf("failed to initialize language model: %w", err)
	}
	if genCloser != nil {
		closers = append(closers, genCloser)
	}
	structurer := structure.NewEngine(gen,
		structure.WithLogger(logger.Named("structure")),
		structure.WithTimeout(cfg.LLM.Timeout))

	var classifier face.Classifier
	if cfg.Face.CascadePath != "" {
		pc, err := face.LoadPigoClassifier(cfg.Face.CascadePath, pigoConfig(cfg.Face))
		if err != nil {
			logger.Warn("face cascade unavailable, face detection disabled", zap.Error(err))
		} else {
			classifier = pc
		}
	}
	locator := face.NewLocator(classifier, face.WithLogger(logger.Named("face")))

	proc := pipeline.New(
		decode.New(decode.FitzRenderer{}, decode.WithLogger(logger.Named("decode"))),
		extractor,
		structurer,
		locator,
		store,
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithIndex(idx),
		pipeline.WithTextSource(decode.TextLayer{}),
	)
	return proc, closers, nil
}

// newGenerator returns the configured model client and, when it holds a connection, its closer.
func newGenerator(ctx context.Context, cfg *config.Config) (structure.Generator, io.Closer, error) {
	switch cfg.LLM.Provider {
	case "vertex":
		model := cfg.LLM.Model
		if model == structure.DefaultOllamaModel {
			model = ""
		}
		vc, err := structure.NewVertexClient(ctx, structure.VertexConfig{
			ProjectID:       cfg.LLM.VertexProject,
			Location:        cfg.LLM.VertexLocation,
			Model:           model,
			CredentialsFile: cfg.LLM.CredentialsFile,
		})
		if err != nil {
			return nil, nil, err
		}
		return vc, vc, nil
	case "ollama":
		return structure.NewOllamaClient(cfg.LLM.URL, cfg.LLM.Model, &http.Client{Timeout: cfg.LLM.Timeout}), nil, nil
	default:
		return nil, nil, errors.New("unknown llm provider " + cfg.LLM.Provider)
	}
}

func pigoConfig(fc config.FaceConfig) face.PigoConfig {
	return face.PigoConfig{
		MinSize:     fc.MinSize,
		MaxSize:     fc.MaxSize,
		ShiftFactor: fc.ShiftFactor,
		ScaleFactor: fc.ScaleFactor,
		IoU:         fc.IoU,
		MinQuality:  fc.MinQuality,
	}
}

// diskPaths lists the local files whose size /health reports.
func diskPaths(cfg *config.Config) []string {
	var paths []string
	if cfg.Storage.Driver == "sqlite" {
		paths = append(paths, storage.SQLiteFiles(cfg.Storage.DatabasePath)...)
	}
	if cfg.Storage.IndexPath != "" {
		paths = append(paths, cfg.Storage.IndexPath)
	}
	return paths
}
