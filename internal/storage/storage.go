// Package storage persists processed documents and serves the read side (lookup, history).
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/idscan/internal/models"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("document not found")

// Store persists processed documents. InsertDocument is atomic: either the
// whole document (record, original images, face) is stored or nothing is.
type Store interface {
	InsertDocument(ctx context.Context, doc *models.ProcessedDocument) (int64, error)
	GetDocument(ctx context.Context, id int64) (*models.ProcessedDocument, error)
	History(ctx context.Context, q models.HistoryQuery) ([]models.HistoryItem, int64, error)
	Close() error
}
