package models

import "fmt"

// HistoryQuery selects one page of processed documents, newest first.
type HistoryQuery struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Normalize clamps the page to >= 1 and the page size to [1, 100], defaulting to 10.
func (q *HistoryQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 10
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
}

// Offset returns the number of rows to skip for the current page.
func (q HistoryQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// LastPage returns the number of pages needed to list total rows (at least 1).
func (q HistoryQuery) LastPage(total int64) int {
	if q.PerPage <= 0 || total <= 0 {
		return 1
	}
	return int((total + int64(q.PerPage) - 1) / int64(q.PerPage))
}

// SearchQuery is a full-text query over extracted records.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate rejects empty queries and bounds the limit to [1, 100], defaulting to 10.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
