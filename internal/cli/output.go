package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/idscan/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteStatus writes a run state to w.
func WriteStatus(w io.Writer, taskID string, st *StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Task:   %s\n", taskID)
	fmt.Fprintf(w, "State:  %s\n", st.State)
	if st.Status != "" {
		label := "Status"
		if st.State == models.RunFailure {
			label = "Error"
		}
		fmt.Fprintf(w, "%-7s %s\n", label+":", st.Status)
	}
	if st.Result != nil {
		fmt.Fprintf(w, "Result: document %d\n", *st.Result)
	}
	return nil
}

// WriteDocument writes a processed document to w.
func WriteDocument(w io.Writer, doc *DocumentResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "Document %d (%s), %d original file(s), created %s\n",
		doc.ID, doc.DocType, doc.OriginalImageCount, doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if doc.FaceImage != nil {
		fmt.Fprintln(w, "Face image: yes")
	} else {
		fmt.Fprintln(w, "Face image: no")
	}
	data, err := json.MarshalIndent(doc.ExtractedData, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n", data)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
