package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/idscan/internal/models"
	"github.com/hyperjump/idscan/internal/pipeline"
)

// Runner executes one submission.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input, sink pipeline.ProgressSink) (*pipeline.Result, error)
}

// Worker pulls tasks from a broker and runs them with bounded concurrency.
type Worker struct {
	broker      Broker
	runner      Runner
	concurrency int
	backoff     time.Duration
	logger      *zap.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(l *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithConcurrency sets how many runs execute at once.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithBackoff sets the pause after a broker error.
func WithBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.backoff = d
		}
	}
}

// NewWorker returns a worker over broker and runner.
func NewWorker(broker Broker, runner Runner, opts ...WorkerOption) *Worker {
	w := &Worker{
		broker:      broker,
		runner:      runner,
		concurrency: 1,
		backoff:     3 * time.Second,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start blocks until ctx is done or the broker closes. Runs already in flight
// finish before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker started", zap.Int("concurrency", w.concurrency))
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		id := i
		g.Go(func() error { return w.loop(gctx, id) })
	}
	err := g.Wait()
	w.logger.Info("worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	logger := w.logger.With(zap.Int("slot", id))
	for {
		task, err := w.broker.Next(ctx)
		switch {
		case err == nil:
			w.Handle(ctx, task)
		case errors.Is(err, ErrClosed), ctx.Err() != nil:
			return nil
		default:
			logger.Warn("waiting for tasks failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.backoff):
			}
		}
	}
}

// Handle runs one task and records its terminal state. Cancelling ctx does not
// interrupt the run.
func (w *Worker) Handle(ctx context.Context, task *Task) {
	ctx = context.WithoutCancel(ctx)
	logger := w.logger.With(zap.String("run_id", task.RunID))
	run := &models.Run{ID: task.RunID, State: models.RunProgress, SubmittedAt: task.SubmittedAt}

	update := func() {
		if err := w.broker.Update(ctx, run); err != nil {
			logger.Error("failed to update run", zap.String("state", string(run.State)), zap.Error(err))
		}
	}
	sink := pipeline.ProgressFunc(func(status string) {
		run.State = models.RunProgress
		run.Status = status
		update()
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Error("run panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			run.State = models.RunFailure
			run.Error = fmt.Sprintf("internal error: %v", r)
			run.Result = nil
			update()
		}
	}()

	sink.Progress("Starting...")
	res, err := w.runner.Run(ctx, pipeline.Input{DocType: task.DocType, Files: task.Files}, sink)
	if err != nil {
		logger.Warn("run failed", zap.Error(err))
		run.State = models.RunFailure
		run.Error = err.Error()
		update()
		return
	}
	id := res.DocumentID
	run.State = models.RunSuccess
	run.Status = pipeline.StatusComplete
	run.Result = &id
	update()
	logger.Info("run succeeded", zap.Int64("document_id", id))
}
