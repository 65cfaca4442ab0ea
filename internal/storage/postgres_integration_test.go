package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hyperjump/idscan/internal/models"
)

func TestPostgresStore_Integration(t *testing.T) {
	if os.Getenv("IDSCAN_INTEGRATION") == "" {
		t.Skip("set IDSCAN_INTEGRATION=1 to run against a PostgreSQL container")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("idscan_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresStore(ctx, dsn, PostgresOptions{MaxRetries: 3, RetryDelay: time.Second})
	require.NoError(t, err)
	defer store.Close()

	doc := &models.ProcessedDocument{
		DocType:        "Passport",
		ExtractedData:  models.Record{"document_type": "passport", "aadhaar_number": 123456789012},
		OriginalImages: [][]byte{[]byte("first"), []byte("second")},
		FaceImage:      []byte("face"),
	}
	id, err := store.InsertDocument(ctx, doc)
	require.NoError(t, err)
	require.Positive(t, id)
	require.False(t, doc.CreatedAt.IsZero())

	got, err := store.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Passport", got.DocType)
	require.Len(t, got.OriginalImages, 2)
	require.True(t, bytes.Equal(got.OriginalImages[1], []byte("second")))
	require.Equal(t, "123456789012", got.ExtractedData["aadhaar_number"].(interface{ String() string }).String())

	_, err = store.InsertDocument(ctx, &models.ProcessedDocument{DocType: "Other", ExtractedData: models.Record{}, OriginalImages: [][]byte{[]byte("x")}})
	require.NoError(t, err)

	items, total, err := store.History(ctx, models.HistoryQuery{Page: 1, PerPage: 1})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	require.Equal(t, "Other", items[0].DocType)

	_, err = store.GetDocument(ctx, 999)
	require.True(t, errors.Is(err, ErrNotFound))
}
