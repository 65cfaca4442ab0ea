package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/idscan/internal/models"
)

// SQLiteStore implements Store using SQLite. Original images live in a child
// table so their order is kept without array columns.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_type TEXT NOT NULL,
		extracted_data TEXT,
		face_image BLOB,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS document_images (
		document_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (document_id, position),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertDocument stores doc in one transaction and sets its ID and CreatedAt.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc *models.ProcessedDocument) (int64, error) {
	data, err := json.Marshal(doc.ExtractedData)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal extracted data: %w", err)
	}
	created := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var face any
	if len(doc.FaceImage) > 0 {
		face = doc.FaceImage
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (doc_type, extracted_data, face_image, created_at) VALUES (?, ?, ?, ?)`,
		doc.DocType, string(data), face, created,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_images (document_id, position, data) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for i, img := range doc.OriginalImages {
		if _, err := stmt.ExecContext(ctx, id, i, img); err != nil {
			return 0, fmt.Errorf("failed to insert image %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	doc.ID = id
	doc.CreatedAt = created
	return id, nil
}

// GetDocument returns a document with its images by ID.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int64) (*models.ProcessedDocument, error) {
	doc := models.ProcessedDocument{ID: id}
	var data sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_type, extracted_data, face_image, created_at FROM documents WHERE id = ?`, id,
	).Scan(&doc.DocType, &data, &doc.FaceImage, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if data.Valid && data.String != "" {
		if doc.ExtractedData, err = models.DecodeRecord([]byte(data.String)); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extracted data: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM document_images WHERE document_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var img []byte
		if err := rows.Scan(&img); err != nil {
			return nil, err
		}
		doc.OriginalImages = append(doc.OriginalImages, img)
	}
	return &doc, rows.Err()
}

// History returns one page of documents, newest first, and the total count.
func (s *SQLiteStore) History(ctx context.Context, q models.HistoryQuery) ([]models.HistoryItem, int64, error) {
	q.Normalize()
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_type, created_at FROM documents ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
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

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
