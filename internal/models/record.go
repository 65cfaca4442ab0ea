package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned when a JSON value that should be a record is not an object.
var ErrNotObject = errors.New("JSON value is not an object")

// DocumentType is the discriminant the model writes into "document_type".
type DocumentType string

const (
	Passport       DocumentType = "passport"
	DrivingLicense DocumentType = "driving_license"
	AadhaarCard    DocumentType = "aadhaar_card"
	EmiratesID     DocumentType = "emirates_id"
	OtherDocument  DocumentType = "other"
	// Unrecognized covers any value outside the known templates, including a missing one.
	Unrecognized DocumentType = "unrecognized"
)

// ParseDocumentType maps a raw discriminant onto the closed set of templates.
func ParseDocumentType(s string) DocumentType {
	switch t := DocumentType(strings.ToLower(strings.TrimSpace(s))); t {
	case Passport, DrivingLicense, AadhaarCard, EmiratesID, OtherDocument:
		return t
	default:
		return Unrecognized
	}
}

const (
	fieldDocumentType   = "document_type"
	fieldError          = "error"
	fieldAdditionalData = "additional_data"
)

// Record is the structured JSON object produced for one run.
type Record map[string]any

// NewErrorRecord returns the failure sentinel record.
func NewErrorRecord(message string) Record {
	return Record{fieldError: message}
}

// Error returns the failure message when the record is the failure sentinel.
func (r Record) Error() (string, bool) {
	v, ok := r[fieldError]
	if !ok {
		return "", false
	}
	if s, isString := v.(string); isString {
		return s, true
	}
	return "structuring failed", true
}

// DocumentType returns the template the model chose.
func (r Record) DocumentType() DocumentType {
	s, _ := r[fieldDocumentType].(string)
	return ParseDocumentType(s)
}

// AdditionalData returns the spillover map, or nil when absent or malformed.
func (r Record) AdditionalData() map[string]any {
	m, _ := r[fieldAdditionalData].(map[string]any)
	return m
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DecodeRecord parses data as a single JSON object. Numbers keep their literal
// form so long identifiers survive a round trip.
func DecodeRecord(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode record: trailing data after JSON value")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Record(m), nil
}
