package services

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Default pool sizing.
const (
	DefaultPoolSize  = 4
	DefaultQueueSize = 64
)

type poolTask struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error // nil for detached tasks
}

// WorkerPool runs functions on a fixed number of goroutines fed by a
// bounded queue. Do waits for the result; Enqueue returns once the task is
// queued.
type WorkerPool struct {
	tasks chan poolTask
	quit  chan struct{}
	wg    sync.WaitGroup

	// sending is held for reading around each send and taken by Close
	// before it drains the queue.
	sending sync.RWMutex

	// base is the context of detached tasks; cancelled by Close.
	base   context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// NewWorkerPool starts size workers reading from a queue of queueSize.
func NewWorkerPool(size, queueSize int) *WorkerPool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}

	base, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		tasks:  make(chan poolTask, queueSize),
		quit:   make(chan struct{}),
		base:   base,
		cancel: cancel,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			p.work()
		}()
	}
	return p
}

func (p *WorkerPool) work() {
	for {
		select {
		case <-p.quit:
			return
		case t := <-p.tasks:
			err := t.ctx.Err()
			if err == nil {
				err = t.fn(t.ctx)
			}
			if t.done != nil {
				t.done <- err
			}
		}
	}
}

// Do runs fn on a worker and waits for it. Cancelling ctx abandons the
// wait; fn itself sees the same ctx. A nil pool runs fn inline.
func (p *WorkerPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if p == nil {
		return fn(ctx)
	}
	t := poolTask{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if err := p.submit(ctx, t); err != nil {
		return err
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules fn without waiting for it. fn runs with a context that
// is cancelled when the pool closes. Enqueue blocks while the queue is full.
func (p *WorkerPool) Enqueue(ctx context.Context, fn func(context.Context)) error {
	if p == nil {
		go fn(context.Background())
		return nil
	}
	return p.submit(ctx, poolTask{
		ctx: p.base,
		fn: func(ctx context.Context) error {
			fn(ctx)
			return nil
		},
	})
}

func (p *WorkerPool) submit(ctx context.Context, t poolTask) error {
	p.sending.RLock()
	defer p.sending.RUnlock()

	select {
	case <-p.quit:
		return ErrPoolClosed
	default:
	}

	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// Close stops the workers after their current task. Queued tasks that
// never started fail with ErrPoolClosed.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		// Wait out senders that raced the close; once quit is closed
		// they return promptly.
		p.sending.Lock()
		p.sending.Unlock() //nolint:staticcheck
		p.cancel()
		p.wg.Wait()

		for {
			select {
			case t := <-p.tasks:
				if t.done != nil {
					t.done <- ErrPoolClosed
				}
			default:
				return
			}
		}
	})
}
