package services

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

func TestWorkerPool_Do(t *testing.T) {
	pool := NewWorkerPool(2, 4)
	defer pool.Close()

	boom := errors.New("boom")
	err := pool.Do(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	ran := false
	require.NoError(t, pool.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestWorkerPool_NilRunsInline(t *testing.T) {
	var pool *WorkerPool
	ran := false
	require.NoError(t, pool.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := NewWorkerPool(2, 16)
	defer pool.Close()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func(context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestWorkerPool_Enqueue(t *testing.T) {
	pool := NewWorkerPool(1, 4)
	defer pool.Close()

	done := make(chan struct{})
	require.NoError(t, pool.Enqueue(context.Background(), func(context.Context) {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueued task never ran")
	}
}

func TestWorkerPool_DoCancelled(t *testing.T) {
	pool := NewWorkerPool(1, 0)
	defer pool.Close()

	release := make(chan struct{})
	require.NoError(t, pool.Enqueue(context.Background(), func(context.Context) {
		<-release
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_Closed(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	pool.Close()
	pool.Close()

	err := pool.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, pool.Enqueue(context.Background(), func(context.Context) {}), ErrPoolClosed)
}

func TestWorkerPool_DoRacingCloseReturns(t *testing.T) {
	for round := 0; round < 50; round++ {
		pool := NewWorkerPool(2, 4)

		var wg sync.WaitGroup
		errs := make(chan error, 32)
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- pool.Do(context.Background(), func(context.Context) error { return nil })
			}()
		}
		pool.Close()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: Do blocked after Close", round)
		}

		close(errs)
		for err := range errs {
			if err != nil {
				require.ErrorIs(t, err, ErrPoolClosed)
			}
		}
	}
}
