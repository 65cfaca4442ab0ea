package models

import "strings"

// FieldKind is the empty value a template field starts from.
type FieldKind int

const (
	NullField FieldKind = iota
	ListField
)

// Field is one named, nullable template field.
type Field struct {
	Name string
	Kind FieldKind
}

// Template is the fixed schema for one document category.
type Template struct {
	Type   DocumentType
	Label  string
	Fields []Field
}

func nullFields(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n}
	}
	return out
}

var templates = []Template{
	{
		Type:  Passport,
		Label: "Passport",
		Fields: nullFields("full_name", "surname", "given_names", "passport_number",
			"nationality", "issuing_country", "gender", "date_of_birth",
			"date_of_issue", "expiry_date", "place_of_birth", "issuing_authority", "mrz"),
	},
	{
		Type:  DrivingLicense,
		Label: "Driving License",
		Fields: append(nullFields("full_name", "license_number", "nationality",
			"gender", "date_of_birth", "address", "date_of_issue", "expiry_date"),
			Field{Name: "vehicle_classes", Kind: ListField},
			Field{Name: "conditions"}, Field{Name: "agency_code"}, Field{Name: "serial_number"}),
	},
	{
		Type:  AadhaarCard,
		Label: "Aadhaar Card",
		Fields: nullFields("full_name", "date_of_birth", "gender",
			"aadhaar_number", "virtual_id", "address"),
	},
	{
		Type:  EmiratesID,
		Label: "Emirates ID",
		Fields: nullFields("full_name", "id_number", "nationality",
			"address", "date_of_birth", "expiry_date"),
	},
	{
		Type:  OtherDocument,
		Label: "Generic ID / Other",
		Fields: nullFields("document_title", "full_name", "id_number",
			"address", "organization", "date_of_issue", "expiry_date", "date_of_birth"),
	},
}

// Templates returns the known templates in prompt order.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateFor returns the template for t; Unrecognized has none.
func TemplateFor(t DocumentType) (Template, bool) {
	for _, tpl := range templates {
		if tpl.Type == t {
			return tpl, true
		}
	}
	return Template{}, false
}

// Skeleton renders the template as an empty JSON object in field order,
// starting with document_type and ending with additional_data.
func (t Template) Skeleton() string {
	var b strings.Builder
	b.WriteString(`{"document_type": "`)
	b.WriteString(string(t.Type))
	b.WriteString(`"`)
	for _, f := range t.Fields {
		b.WriteString(`, "`)
		b.WriteString(f.Name)
		b.WriteString(`": `)
		if f.Kind == ListField {
			b.WriteString("[]")
		} else {
			b.WriteString("null")
		}
	}
	b.WriteString(`, "additional_data": {}}`)
	return b.String()
}
