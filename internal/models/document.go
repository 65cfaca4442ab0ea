// Package models defines the data structures shared by the pipeline, storage, queue and API.
package models

import (
	"sort"
	"time"
)

// MaxDocTypeLength is the longest caller-supplied document type label accepted.
const MaxDocTypeLength = 50

// SubmittedFile is one uploaded file. Key decides its position in the run.
type SubmittedFile struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// SortFiles returns a copy of files ordered by Key (lexicographic, stable).
func SortFiles(files []SubmittedFile) []SubmittedFile {
	out := make([]SubmittedFile, len(files))
	copy(out, files)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ProcessedDocument is the persisted result of one successful run.
// OriginalImages holds the uploaded bytes before normalization, in submission order.
type ProcessedDocument struct {
	ID             int64     `json:"id"`
	DocType        string    `json:"doc_type"`
	ExtractedData  Record    `json:"extracted_data"`
	OriginalImages [][]byte  `json:"-"`
	FaceImage      []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryItem is one row of the paginated history listing.
type HistoryItem struct {
	ID        int64     `json:"id"`
	DocType   string    `json:"doc_type"`
	CreatedAt time.Time `json:"created_at"`
}
