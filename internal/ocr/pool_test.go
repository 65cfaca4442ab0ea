package ocr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHandle struct {
	id     int
	closed bool
}

func newFakePool(t *testing.T, size int) (*handlePool[*fakeHandle], *[]*fakeHandle) {
	t.Helper()
	var created []*fakeHandle
	p, err := newHandlePool(size, func() (*fakeHandle, error) {
		h := &fakeHandle{id: len(created)}
		created = append(created, h)
		return h, nil
	}, func(h *fakeHandle) error {
		h.closed = true
		return nil
	})
	if err != nil {
		t.Fatalf("newHandlePool failed: %v", err)
	}
	return p, &created
}

func TestHandlePoolRunsCallersInParallel(t *testing.T) {
	p, _ := newFakePool(t, 3)
	defer p.close()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := p.acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			p.release(h)
		}()
	}
	wg.Wait()
	if peak < 2 || peak > 3 {
		t.Errorf("peak concurrency = %d, want between 2 and 3", peak)
	}
}

func TestHandlePoolHandleHeldByOneCaller(t *testing.T) {
	p, _ := newFakePool(t, 1)
	defer p.close()

	h, err := p.acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := p.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second acquire err = %v, want deadline exceeded", err)
	}
	p.release(h)
	if got, err := p.acquire(context.Background()); err != nil || got != h {
		t.Errorf("acquire after release = %v, %v", got, err)
	}
}

func TestHandlePoolSizeFloor(t *testing.T) {
	p, created := newFakePool(t, 0)
	defer p.close()
	if p.size() != 1 || len(*created) != 1 {
		t.Errorf("size = %d, created = %d, want 1", p.size(), len(*created))
	}
}

func TestHandlePoolClose(t *testing.T) {
	p, created := newFakePool(t, 2)
	if err := p.close(); err != nil {
		t.Fatal(err)
	}
	for _, h := range *created {
		if !h.closed {
			t.Errorf("handle %d not closed", h.id)
		}
	}
	if _, err := p.acquire(context.Background()); !errors.Is(err, errPoolClosed) {
		t.Errorf("acquire after close err = %v", err)
	}
	if err := p.close(); err != nil {
		t.Errorf("second close err = %v", err)
	}
}

func TestHandlePoolCreationFailureClosesCreated(t *testing.T) {
	var created []*fakeHandle
	_, err := newHandlePool(3, func() (*fakeHandle, error) {
		if len(created) == 2 {
			return nil, errors.New("no tessdata")
		}
		h := &fakeHandle{id: len(created)}
		created = append(created, h)
		return h, nil
	}, func(h *fakeHandle) error {
		h.closed = true
		return nil
	})
	if err == nil {
		t.Fatal("expected creation error")
	}
	for _, h := range created {
		if !h.closed {
			t.Errorf("handle %d leaked", h.id)
		}
	}
}
