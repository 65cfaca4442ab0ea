package ocr

import (
	"context"
	"errors"
	"sync"
)

// errPoolClosed is returned by acquire once the pool has been closed.
var errPoolClosed = errors.New("engine pool closed")

// handlePool lends out a fixed set of engine handles. A handle is held by one
// caller at a time, so handles with per-image state can serve concurrent runs.
type handlePool[T any] struct {
	handles   chan T
	all       []T
	closeFn   func(T) error
	done      chan struct{}
	closeOnce sync.Once
}

// newHandlePool creates size handles with newFn. If any creation fails, the
// handles created so far are closed.
func newHandlePool[T any](size int, newFn func() (T, error), closeFn func(T) error) (*handlePool[T], error) {
	if size < 1 {
		size = 1
	}
	p := &handlePool[T]{
		handles: make(chan T, size),
		closeFn: closeFn,
		done:    make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		h, err := newFn()
		if err != nil {
			_ = p.close()
			return nil, err
		}
		p.all = append(p.all, h)
		p.handles <- h
	}
	return p, nil
}

func (p *handlePool[T]) size() int { return len(p.all) }

// acquire waits for a free handle, ctx cancellation or close.
func (p *handlePool[T]) acquire(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-p.done:
		return zero, errPoolClosed
	default:
	}
	select {
	case h := <-p.handles:
		return h, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.done:
		return zero, errPoolClosed
	}
}

func (p *handlePool[T]) release(h T) {
	p.handles <- h
}

// close releases every handle. Handles still lent out are closed as well, so
// callers must stop using the pool first.
func (p *handlePool[T]) close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.done)
		for _, h := range p.all {
			if err := p.closeFn(h); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
