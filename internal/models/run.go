package models

import "time"

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	RunPending  RunState = "PENDING"
	RunProgress RunState = "PROGRESS"
	RunSuccess  RunState = "SUCCESS"
	RunFailure  RunState = "FAILURE"
)

// Terminal reports whether no further transitions can happen.
func (s RunState) Terminal() bool {
	return s == RunSuccess || s == RunFailure
}

// Run is the observable state of one submission.
// Result is set only on SUCCESS and Error only on FAILURE.
type Run struct {
	ID          string    `json:"id"`
	State       RunState  `json:"state"`
	Status      string    `json:"status"`
	Result      *int64    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
