// Package index provides full-text search over extracted records using Bleve.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/idscan/internal/models"
)

// Fuzziness is the edit distance tolerated per query term, which absorbs
// single-character OCR misreads.
const Fuzziness = 1

// Hit is one search result.
type Hit struct {
	ID           int64   `json:"id"`
	DocType      string  `json:"doc_type"`
	DocumentType string  `json:"document_type"`
	Score        float64 `json:"score"`
}

type entry struct {
	DocType      string `json:"doc_type"`
	DocumentType string `json:"document_type"`
	Content      string `json:"content"`
}

// BleveIndex indexes persisted documents by the text of their records.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens an index at path. An empty path keeps the
// index in memory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: identity numbers and names must match as written, without stemming.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("doc_type", textFieldMapping)
	docMapping.AddFieldMappingsAt("document_type", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("record", docMapping)
	im.DefaultType = "record"
	im.DefaultMapping = docMapping

	if path == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: idx}, nil
	}

	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: idx}, nil
	}

	idx, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

// IndexDocument indexes a persisted document under its ID.
func (b *BleveIndex) IndexDocument(ctx context.Context, doc *models.ProcessedDocument) error {
	if doc.ID == 0 {
		return fmt.Errorf("document has no id")
	}
	e := entry{
		DocType:      doc.DocType,
		DocumentType: string(doc.ExtractedData.DocumentType()),
		Content:      Flatten(doc.ExtractedData),
	}
	return b.index.Index(strconv.FormatInt(doc.ID, 10), e)
}

// Search matches q against record text and caller labels. Every term may
// match exactly or within Fuzziness edits; exact matches score higher.
func (b *BleveIndex) Search(ctx context.Context, q models.SearchQuery) ([]Hit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequest(buildQuery(q.Query))
	req.Size = q.Limit
	req.Fields = []string{"doc_type", "document_type"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hit := Hit{ID: id, Score: h.Score}
		if s, ok := h.Fields["doc_type"].(string); ok {
			hit.DocType = s
		}
		if s, ok := h.Fields["document_type"].(string); ok {
			hit.DocumentType = s
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func buildQuery(text string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return bleve.NewMatchQuery(text)
	}
	queries := []blevequery.Query{bleve.NewMatchQuery(text)}
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(Fuzziness)
		fq.SetBoost(0.5)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id int64) error {
	return b.index.Delete(strconv.FormatInt(id, 10))
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// Flatten returns the scalar values of rec as one line of text, keys in
// sorted order, nested objects and lists included. Nulls are skipped.
func Flatten(rec models.Record) string {
	var parts []string
	flatten(map[string]any(rec), &parts)
	return strings.Join(parts, " ")
}

func flatten(v any, parts *[]string) {
	switch t := v.(type) {
	case nil:
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*parts = append(*parts, s)
		}
	case json.Number:
		*parts = append(*parts, t.String())
	case float64:
		*parts = append(*parts, strconv.FormatFloat(t, 'f', -1, 64))
	case int:
		*parts = append(*parts, strconv.Itoa(t))
	case int64:
		*parts = append(*parts, strconv.FormatInt(t, 10))
	case bool:
		*parts = append(*parts, strconv.FormatBool(t))
	case []any:
		for _, item := range t {
			flatten(item, parts)
		}
	case models.Record:
		flatten(map[string]any(t), parts)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(t[k], parts)
		}
	}
}
