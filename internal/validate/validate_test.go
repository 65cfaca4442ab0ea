package validate

import (
	"reflect"
	"testing"

	"github.com/hyperjump/idscan/internal/models"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		parsed bool
	}{
		{"1990-03-15", "1990-03-15", true},
		{"1990-3-5", "1990-03-05", true},
		{"15 Mar 1990", "1990-03-15", true},
		{"5 mar 1990", "1990-03-05", true},
		{"March 15, 1990", "1990-03-15", true},
		{"15/03/1990", "1990-03-15", true},
		{"03/04/1990", "1990-04-03", true},
		{"12/31/1990", "1990-12-31", true},
		{"31-12-1990", "31-12-1990", false},
		{"unknown", "unknown", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.in)
		if got != tt.want || ok != tt.parsed {
			t.Errorf("NormalizeDate(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.parsed)
		}
	}
}

func TestRecord(t *testing.T) {
	in := models.Record{
		"document_type":   "passport",
		"date_of_birth":   "15/03/1990",
		"Expiry_Date":     "March 15, 2030",
		"dateOfIssue":     "not a date",
		"update_count":    "15/03/1990",
		"issue_date":      nil,
		"full_name":       "15/03/1990",
		"additional_data": map[string]any{"visa_date": "15/03/1990"},
	}
	got := Record(in)

	want := map[string]any{
		"date_of_birth": "1990-03-15",
		"Expiry_Date":   "2030-03-15",
		"dateOfIssue":   "not a date",
		"update_count":  "1990-03-15",
		"full_name":     "15/03/1990",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	if got["issue_date"] != nil {
		t.Error("non-string date field must be left alone")
	}
	if nested := got["additional_data"].(map[string]any); nested["visa_date"] != "15/03/1990" {
		t.Error("fields inside additional_data must not change")
	}
	if in["date_of_birth"] != "15/03/1990" {
		t.Error("input record was mutated")
	}
}

func TestRecord_Idempotent(t *testing.T) {
	recs := []models.Record{
		{"date_of_birth": "03/04/1990", "expiry_date": "1 Jan 2031", "name": "x"},
		{"date": "2020-02-29", "birth_date": "31/12/1999"},
		{},
	}
	for _, rec := range recs {
		once := Record(rec)
		twice := Record(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent: %v vs %v", once, twice)
		}
	}
}

func TestValue_PassThrough(t *testing.T) {
	if got := Value([]any{"15/03/1990"}); !reflect.DeepEqual(got, []any{"15/03/1990"}) {
		t.Errorf("list changed: %v", got)
	}
	if got := Value("15/03/1990"); got != "15/03/1990" {
		t.Errorf("string changed: %v", got)
	}
	m := Value(map[string]any{"date": "15 Mar 1990"}).(map[string]any)
	if m["date"] != "1990-03-15" {
		t.Errorf("plain map not normalized: %v", m)
	}
	if Record(nil) != nil {
		t.Error("nil record should stay nil")
	}
}
