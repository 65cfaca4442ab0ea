package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/idscan/internal/models"
)

// MemoryBroker is an in-process broker. Tasks live in a bounded channel and
// run states in a map that is swept of expired terminal runs.
type MemoryBroker struct {
	mu     sync.RWMutex
	runs   map[string]*models.Run
	tasks  chan *Task
	ttl    time.Duration
	clock  TimeProvider
	logger *zap.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryBroker.
type MemoryOption func(*MemoryBroker)

// WithMemoryLogger sets the broker logger.
func WithMemoryLogger(l *zap.Logger) MemoryOption {
	return func(b *MemoryBroker) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithResultTTL sets how long terminal runs are kept.
func WithResultTTL(d time.Duration) MemoryOption {
	return func(b *MemoryBroker) {
		if d > 0 {
			b.ttl = d
		}
	}
}

// WithClock replaces the broker clock.
func WithClock(c TimeProvider) MemoryOption {
	return func(b *MemoryBroker) {
		if c != nil {
			b.clock = c
		}
	}
}

// NewMemoryBroker returns a broker holding up to capacity pending tasks.
func NewMemoryBroker(capacity int, opts ...MemoryOption) *MemoryBroker {
	if capacity <= 0 {
		capacity = 64
	}
	b := &MemoryBroker{
		runs:   make(map[string]*models.Run),
		tasks:  make(chan *Task, capacity),
		ttl:    DefaultResultTTL,
		clock:  realTimeProvider{},
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// StartCleanup sweeps expired runs every interval until ctx is done or the broker closes.
func (b *MemoryBroker) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.Cleanup()
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
		}
	}()
}

// Cleanup deletes terminal runs last updated longer than the TTL ago.
func (b *MemoryBroker) Cleanup() int {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, run := range b.runs {
		if run.State.Terminal() && now.Sub(run.UpdatedAt) > b.ttl {
			delete(b.runs, id)
			removed++
		}
	}
	if removed > 0 {
		b.logger.Debug("expired runs removed", zap.Int("count", removed))
	}
	return removed
}

// Submit records a PENDING run and enqueues its task.
func (b *MemoryBroker) Submit(ctx context.Context, docType string, files []models.SubmittedFile) (string, error) {
	select {
	case <-b.done:
		return "", ErrClosed
	default:
	}
	task, run := newTask(docType, files, b.clock.Now())

	b.mu.Lock()
	b.runs[run.ID] = run
	b.mu.Unlock()

	select {
	case b.tasks <- task:
		return run.ID, nil
	default:
		b.mu.Lock()
		delete(b.runs, run.ID)
		b.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Status returns a copy of the run state.
func (b *MemoryBroker) Status(ctx context.Context, runID string) (*models.Run, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	run, ok := b.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	cp := *run
	return &cp, nil
}

// Next returns the oldest pending task.
func (b *MemoryBroker) Next(ctx context.Context) (*Task, error) {
	select {
	case task := <-b.tasks:
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, ErrClosed
	}
}

// Update replaces the stored state of run.ID.
func (b *MemoryBroker) Update(ctx context.Context, run *models.Run) error {
	cp := *run
	cp.UpdatedAt = b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.runs[run.ID]; ok && cp.SubmittedAt.IsZero() {
		cp.SubmittedAt = prev.SubmittedAt
	}
	b.runs[run.ID] = &cp
	return nil
}

// Close stops Next and Submit. Stored run states remain readable.
func (b *MemoryBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
