// Package threadpool implements the fixed worker pool that backs the
// I/O scheduler: a bounded set of goroutines consuming a FIFO queue
// of jobs, with graceful shutdown. The slow-path overflow queue is
// backed by github.com/eapache/queue instead of a hand-rolled slice
// queue.
package threadpool

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// TaskFunc is a unit of work submitted to the pool.
type TaskFunc = func()

// ErrPoolStopped is returned by Submit/Enqueue once Stop has run.
var ErrPoolStopped = errors.New("threadpool: enqueue on stopped pool")

// Pool is a fixed-size set of worker goroutines draining a FIFO job
// queue. Each worker owns a small lock-free local ring (the hot path
// for jobs routed to it by round robin); anything that doesn't fit
// spills into a shared eapache/queue.Queue protected by the pool's
// own mutex/condvar, a classic single condition-variable-guarded
// queue.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	overflow *queue.Queue
	stopped  bool

	workers []*worker
	wg      sync.WaitGroup
	next    atomic.Uint64
}

type worker struct {
	id    int
	pool  *Pool
	local *ring[TaskFunc]
}

// New starts n worker goroutines (n is clamped to at least 1).
func New(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	p := &Pool{overflow: queue.New()}
	p.cond = sync.NewCond(&p.mu)
	p.workers = make([]*worker, n)
	for i := range p.workers {
		w := &worker{id: i, pool: p, local: newRing[TaskFunc](1024)}
		p.workers[i] = w
		p.wg.Add(1)
		go w.run()
	}
	return p
}

// Submit enqueues task for execution on some worker. Submitting after
// Stop returns ErrPoolStopped.
func (p *Pool) Submit(task TaskFunc) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.mu.Unlock()

	idx := int(p.next.Add(1)) % len(p.workers)
	w := p.workers[idx]
	if !w.local.push(task) {
		p.mu.Lock()
		p.overflow.Add(task)
		p.mu.Unlock()
	}
	// Broadcast, not Signal: the job sits in one worker's own ring, and
	// Signal could wake a different idle worker that finds nothing.
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// Stop sets the stop flag, wakes every worker, and blocks until all
// of them have drained their remaining jobs and exited. Idempotent.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	for {
		task, ok := w.next_()
		if !ok {
			return
		}
		task()
	}
}

// next_ pops the next job for this worker: its own local ring first,
// then the shared overflow queue, blocking on the pool's condition
// variable when both are empty and the pool has not been stopped.
func (w *worker) next_() (TaskFunc, bool) {
	p := w.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if t, ok := w.local.pop(); ok {
			return t, true
		}
		if p.overflow.Length() > 0 {
			v := p.overflow.Remove()
			return v.(TaskFunc), true
		}
		if p.stopped {
			return nil, false
		}
		p.cond.Wait()
	}
}

// futureResult carries a Future's resolved value or error.
type futureResult[T any] struct {
	val T
	err error
}

// Future resolves to a submitted callable's result.
type Future[T any] struct {
	ch chan futureResult[T]
}

// Get blocks until the task completes and returns its result.
func (f *Future[T]) Get() (T, error) {
	r, ok := <-f.ch
	if !ok {
		var zero T
		return zero, ErrPoolStopped
	}
	return r.val, r.err
}

// Enqueue wraps fn in a packaged task and submits it, returning a
// Future that resolves to fn's result.
func Enqueue[T any](p *Pool, fn func() (T, error)) (*Future[T], error) {
	fut := &Future[T]{ch: make(chan futureResult[T], 1)}
	err := p.Submit(func() {
		v, err := fn()
		fut.ch <- futureResult[T]{val: v, err: err}
	})
	if err != nil {
		close(fut.ch)
		return nil, err
	}
	return fut, nil
}
