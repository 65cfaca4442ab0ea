package structure

import (
	"strings"

	"github.com/hyperjump/idscan/internal/models"
)

const promptHeader = `You are an expert at extracting data from identity documents. Read the attached document image(s) together with the OCR text below and produce one structured JSON object.

Work through these steps:
1. Identify the document type from the images and the text.
2. Pick exactly one template from "Available Templates" that fits the document.
3. Use the images to check and correct the OCR text, then extract everything the template needs.
4. Fill the template's fields. Write dates as YYYY-MM-DD and country codes as ISO 3166-1 alpha-3 (for example "USA", "PHL", "IND", "ARE"). Use null for fields that are not present.
5. Put any other labeled data that has no matching field into "additional_data" as key/value pairs.
6. Reply with ONLY the chosen template as a single minified JSON object. No explanations, no markdown.

--- Available Templates (choose ONE) ---
`

const promptTextHeader = `
--- OCR Text (guidance only, verify against the images) ---
`

// BuildPrompt returns the extraction prompt for rawText listing every known template.
func BuildPrompt(rawText string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, tpl := range models.Templates() {
		b.WriteString("\nTemplate for \"")
		b.WriteString(tpl.Label)
		b.WriteString("\":\n")
		b.WriteString(tpl.Skeleton())
		b.WriteString("\n")
	}
	b.WriteString(promptTextHeader)
	b.WriteString(rawText)
	b.WriteString("\n")
	return b.String()
}
