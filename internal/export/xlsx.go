// Package export writes processed documents to spreadsheets.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/idscan/internal/models"
)

// SheetName is the worksheet holding one row per document.
const SheetName = "Documents"

// ContentType is the MIME type of the workbook WriteXLSX produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var fixedColumns = []string{"id", "doc_type", "created_at", "document_type"}

// Columns returns the header row for docs: the fixed columns followed by the
// sorted union of top-level record fields.
func Columns(docs []*models.ProcessedDocument) []string {
	seen := map[string]bool{}
	for _, c := range fixedColumns {
		seen[c] = true
	}
	var fields []string
	for _, d := range docs {
		for k := range d.ExtractedData {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	return append(append([]string{}, fixedColumns...), fields...)
}

// WriteXLSX writes docs as a workbook with a bold header row. Nested record
// values are written as compact JSON and numbers as text, so long identifiers
// keep every digit.
func WriteXLSX(w io.Writer, docs []*models.ProcessedDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	columns := Columns(docs)
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, d := range docs {
		row := make([]interface{}, len(columns))
		row[0] = d.ID
		row[1] = d.DocType
		row[2] = d.CreatedAt.UTC().Format(time.RFC3339)
		for j := len(fixedColumns) - 1; j < len(columns); j++ {
			row[j] = cellValue(d.ExtractedData[columns[j]])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write document %d: %w", d.ID, err)
		}
	}
	return f.Write(w)
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
