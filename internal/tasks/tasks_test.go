package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish in time")
	}
}

func TestPoolRunsJob(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var ran atomic.Bool
	h := p.Submit(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	waitDone(t, h)
	assert.True(t, ran.Load())
	assert.NoError(t, h.Err())
}

func TestPoolReportsJobError(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	boom := errors.New("boom")
	h := p.Submit(func(ctx context.Context) error { return boom })

	waitDone(t, h)
	assert.ErrorIs(t, h.Err(), boom)
}

func TestPoolRunsJobsConcurrently(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var mu sync.Mutex
	seen := map[int]bool{}

	handles := make([]Handle, 8)
	for i := 0; i < 8; i++ {
		i := i
		handles[i] = p.Submit(func(ctx context.Context) error {
			mu.Lock()
			seen[i] = true
			mu.Unlock()
			return nil
		})
	}
	for _, h := range handles {
		waitDone(t, h)
	}
	assert.Len(t, seen, 8)
}

func TestPoolCloseDrainsQueue(t *testing.T) {
	p := NewPool(1)

	var count atomic.Int32
	handles := make([]Handle, 5)
	for i := range handles {
		handles[i] = p.Submit(func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}

	p.Close()

	assert.Equal(t, int32(5), count.Load())
	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Fatal("handle not done after Close")
		}
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool(1)
	p.Close()
	require.NotPanics(t, p.Close)
}

func TestPoolSubmitAfterClose(t *testing.T) {
	p := NewPool(1)
	p.Close()

	var h Handle
	require.NotPanics(t, func() {
		h = p.Submit(func(ctx context.Context) error {
			t.Fatal("job must not run after Close")
			return nil
		})
	})

	waitDone(t, h)
	assert.ErrorIs(t, h.Err(), ErrClosed)
}

func TestPoolMinimumWorkers(t *testing.T) {
	p := NewPool(0)
	defer p.Close()

	h := p.Submit(func(ctx context.Context) error { return nil })
	waitDone(t, h)
}
