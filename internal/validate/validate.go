// Package validate applies deterministic clean-up to structured records.
package validate

import (
	"strings"
	"time"

	"github.com/hyperjump/idscan/internal/models"
)

// ISODate is the layout every recognized date is rewritten to.
const ISODate = "2006-01-02"

// dateLayouts are tried in order: ISO, "15 Mar 1990", "March 15, 1990",
// day-first slashes, then month-first slashes. Single-digit days and months are accepted.
var dateLayouts = []string{
	"2006-1-2",
	"2 Jan 2006",
	"January 2, 2006",
	"2/1/2006",
	"1/2/2006",
}

// Record returns a copy of rec in which every string field whose name contains
// "date" (any case) and parses with one of the known layouts is rewritten as
// YYYY-MM-DD. Other fields are copied untouched.
func Record(rec models.Record) models.Record {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	for key, value := range rec {
		if !strings.Contains(strings.ToLower(key), "date") {
			continue
		}
		s, ok := value.(string)
		if !ok {
			continue
		}
		if iso, ok := NormalizeDate(s); ok {
			out[key] = iso
		}
	}
	return out
}

// Value applies Record to objects and returns any other value unchanged.
func Value(v any) any {
	switch m := v.(type) {
	case models.Record:
		return Record(m)
	case map[string]any:
		return map[string]any(Record(models.Record(m)))
	default:
		return v
	}
}

// NormalizeDate parses s against the known layouts and returns it as YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), true
		}
	}
	return s, false
}
