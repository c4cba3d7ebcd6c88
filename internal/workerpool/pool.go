// Package workerpool runs blocking work on a fixed set of goroutines.
package workerpool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("workerpool: closed")

// Pool manages a fixed pool of goroutines for blocking tasks.
// Network goroutines hand CPU-bound searches to the pool instead of running
// them inline, so the number of concurrent scans stays bounded.
type Pool struct {
	numWorkers int
	workCh     chan func() // Channel carries work closures
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closed     atomic.Bool // Tracks if pool is closed
	submitMu   sync.RWMutex
	busy       atomic.Int64
}

// New creates a worker pool with numWorkers goroutines.
// numWorkers <= 0 means runtime.GOMAXPROCS(0).
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		numWorkers: numWorkers,
		workCh:     make(chan func(), numWorkers*2), // 2x buffer for pipelining
		stopCh:     make(chan struct{}),
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.numWorkers }

// Busy returns the number of tasks currently running.
func (p *Pool) Busy() int64 { return p.busy.Load() }

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			// Drain remaining work before exiting
			for {
				select {
				case task, ok := <-p.workCh:
					if !ok {
						return
					}
					p.run(task)
				default:
					return
				}
			}
		case task, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *Pool) run(task func()) {
	p.busy.Add(1)
	defer p.busy.Add(-1)
	task()
}

// Submit enqueues task and returns without waiting for it to run.
//
// It returns ErrClosed if the pool is closed and ctx.Err() if ctx ends
// before the task could be enqueued.
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return ErrClosed
	}

	select {
	case p.workCh <- task:
		return nil
	case <-p.stopCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the pool and waits for it to finish.
//
// If ctx ends first, Do returns ctx.Err() immediately; fn still runs to
// completion on its worker and its result is discarded.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	return p.DoRelease(ctx, fn, nil)
}

// DoRelease is Do with a release hook that runs exactly once: on the worker
// after fn returns, or before DoRelease returns if fn was never enqueued.
// Resources held for fn therefore stay held while fn runs, even after ctx
// has ended.
func (p *Pool) DoRelease(ctx context.Context, fn func() error, release func()) error {
	if release == nil {
		release = func() {}
	}

	done := make(chan error, 1)
	task := func() {
		defer release()
		done <- fn()
	}
	if err := p.Submit(ctx, task); err != nil {
		release()
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the pool after queued tasks finish. It is idempotent.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.submitMu.Lock()
	close(p.stopCh)
	close(p.workCh)
	p.submitMu.Unlock()

	p.wg.Wait()
}
