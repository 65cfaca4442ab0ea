package index

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/hyperjump/idscan/internal/models"
)

func sampleDoc(id int64) *models.ProcessedDocument {
	return &models.ProcessedDocument{
		ID:      id,
		DocType: "Emirates ID",
		ExtractedData: models.Record{
			"document_type": "emirates_id",
			"full_name":     "Ahmed Al Mansoori",
			"id_number":     "784-1990-1234567-1",
			"nationality":   nil,
			"additional_data": map[string]any{
				"card_number": json.Number("112233445"),
			},
		},
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten(models.Record{
		"b":    "second",
		"a":    "first",
		"n":    json.Number("42"),
		"null": nil,
		"list": []any{"x", true},
		"nest": map[string]any{"z": "deep"},
	})
	want := "first second x true 42 deep"
	if got != want {
		t.Errorf("Flatten = %q, want %q", got, want)
	}
}

func TestBleveIndex_SearchFindsRecordText(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.IndexDocument(ctx, sampleDoc(3)); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	other := &models.ProcessedDocument{ID: 4, DocType: "Passport", ExtractedData: models.Record{"document_type": "passport", "full_name": "Jane Doe"}}
	if err := idx.IndexDocument(ctx, other); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, models.SearchQuery{Query: "mansoori"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != 3 {
		t.Fatalf("hits = %+v, want document 3", hits)
	}
	if hits[0].DocType != "Emirates ID" || hits[0].DocumentType != "emirates_id" {
		t.Errorf("hit fields = %+v", hits[0])
	}

	hits, err = idx.Search(ctx, models.SearchQuery{Query: "112233445"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != 3 {
		t.Errorf("nested number not searchable: %+v", hits)
	}
}

func TestBleveIndex_FuzzyMatch(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()
	if err := idx.IndexDocument(ctx, sampleDoc(1)); err != nil {
		t.Fatal(err)
	}
	hits, err := idx.Search(ctx, models.SearchQuery{Query: "mansori"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0].ID != 1 {
		t.Errorf("fuzzy hits = %+v", hits)
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if _, err := idx.Search(context.Background(), models.SearchQuery{}); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestBleveIndex_RejectsUnsavedDocument(t *testing.T) {
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if err := idx.IndexDocument(context.Background(), &models.ProcessedDocument{}); err == nil {
		t.Fatal("expected error for document without id")
	}
}

func TestBleveIndex_ReopensOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.bleve")
	ctx := context.Background()

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexDocument(ctx, sampleDoc(9)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	n, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("DocCount = %d, want 1", n)
	}

	if err := idx.Delete(ctx, 9); err != nil {
		t.Fatal(err)
	}
	n, _ = idx.DocCount()
	if n != 0 {
		t.Errorf("DocCount after delete = %d, want 0", n)
	}
}
