package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/models"
)

// PostgresStore implements Store on PostgreSQL. Original images are a BYTEA[]
// column so a document is always a single row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresOptions controls connection retries.
type PostgresOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// NewPostgresStore connects to databaseURL, retrying while the server comes
// up, and creates the schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts PostgresOptions) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is not set")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		opts.Logger.Warn("database connection failed",
			zap.Int("attempt", attempt), zap.Int("max_attempts", opts.MaxRetries), zap.Error(err))
		if attempt == opts.MaxRetries {
			return nil, fmt.Errorf("failed to connect to the database after %d attempts: %w", opts.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS documents (
		id SERIAL PRIMARY KEY,
		doc_type VARCHAR(50) NOT NULL,
		extracted_data JSONB,
		original_images BYTEA[],
		face_image BYTEA,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
	`)
	return err
}

// InsertDocument stores doc as one row and sets its ID and CreatedAt.
func (s *PostgresStore) InsertDocument(ctx context.Context, doc *models.ProcessedDocument) (int64, error) {
	data, err := json.Marshal(doc.ExtractedData)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal extracted data: %w", err)
	}
	var face []byte
	if len(doc.FaceImage) > 0 {
		face = doc.FaceImage
	}
	var id int64
	var created time.Time
	err = s.pool.QueryRow(ctx,
		`INSERT INTO documents (doc_type, extracted_data, original_images, face_image)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		doc.DocType, string(data), doc.OriginalImages, face,
	).Scan(&id, &created)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	doc.ID = id
	doc.CreatedAt = created
	return id, nil
}

// GetDocument returns a document with its images by ID.
func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (*models.ProcessedDocument, error) {
	doc := models.ProcessedDocument{ID: id}
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc_type, extracted_data, original_images, face_image, created_at
		 FROM documents WHERE id = $1`, id,
	).Scan(&doc.DocType, &data, &doc.OriginalImages, &doc.FaceImage, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if doc.ExtractedData, err = models.DecodeRecord(data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted data: %w", err)
		}
	}
	return &doc, nil
}

// History returns one page of documents, newest first, and the total count.
func (s *PostgresStore) History(ctx context.Context, q models.HistoryQuery) ([]models.HistoryItem, int64, error) {
	q.Normalize()
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, doc_type, created_at FROM documents ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []models.HistoryItem{}
	for rows.Next() {
		var item models.HistoryItem
		if err := rows.Scan(&item.ID, &item.DocType, &item.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
