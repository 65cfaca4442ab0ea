// Package queue decouples submission from processing. A Broker holds pending
// tasks and the observable state of every run; workers pull tasks and write
// progress back.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/idscan/internal/models"
)

// DefaultResultTTL is how long terminal run states stay queryable.
const DefaultResultTTL = 24 * time.Hour

var (
	// ErrRunNotFound is returned for unknown or expired run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrClosed is returned once a broker has been closed.
	ErrClosed = errors.New("queue closed")
	// ErrQueueFull is returned when a bounded broker cannot accept more tasks.
	ErrQueueFull = errors.New("queue full")
)

// Task is one submission waiting to be processed.
type Task struct {
	RunID       string                 `json:"run_id"`
	DocType     string                 `json:"doc_type"`
	Files       []models.SubmittedFile `json:"files"`
	SubmittedAt time.Time              `json:"submitted_at"`
}

// Dispatcher accepts submissions and reports run state.
type Dispatcher interface {
	Submit(ctx context.Context, docType string, files []models.SubmittedFile) (string, error)
	Status(ctx context.Context, runID string) (*models.Run, error)
}

// Broker is the worker side of a Dispatcher.
type Broker interface {
	Dispatcher
	// Next blocks until a task is available, ctx is done or the broker is closed.
	Next(ctx context.Context) (*Task, error)
	// Update stores the run state reported by a worker.
	Update(ctx context.Context, run *models.Run) error
	Close() error
}

// newTask builds a task and the PENDING run recorded for it.
func newTask(docType string, files []models.SubmittedFile, now time.Time) (*Task, *models.Run) {
	id := uuid.NewString()
	task := &Task{RunID: id, DocType: docType, Files: files, SubmittedAt: now}
	run := &models.Run{
		ID:          id,
		State:       models.RunPending,
		Status:      "Pending...",
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	return task, run
}
