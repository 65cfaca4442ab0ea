package pipeline

// Status texts reported while a run is in progress.
const (
	StatusOCR         = "Cleaning images & performing high-accuracy OCR..."
	StatusStructuring = "AI is analyzing and structuring the document..."
	StatusValidating  = "Validating and formatting final data..."
	StatusFaces       = "Detecting faces..."
	StatusSaving      = "Saving to database..."
	StatusComplete    = "Task Complete!"
)

// ProgressSink receives status updates while a run executes.
type ProgressSink interface {
	Progress(status string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(status string)

// Progress calls f(status).
func (f ProgressFunc) Progress(status string) { f(status) }

type discardProgress struct{}

func (discardProgress) Progress(string) {}
