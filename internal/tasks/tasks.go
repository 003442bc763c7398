// Package tasks provides a small task-submission abstraction so callers can
// hand off background work without assuming a particular concurrency
// primitive. A submitted job executes exactly once on one of the pool's
// workers and reports completion or failure through its handle.
package tasks

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is reported through a job's handle when the job was submitted
// after the pool stopped accepting work.
var ErrClosed = errors.New("task runner is closed")

// Job is a unit of background work.
type Job func(ctx context.Context) error

// Handle tracks one submitted job.
type Handle interface {
	// Done is closed when the job has finished, successfully or not.
	Done() <-chan struct{}
	// Err returns the job's error. Valid only after Done is closed.
	Err() error
}

// Runner accepts jobs for eventual execution.
type Runner interface {
	// Submit queues a job. A job submitted after Close is never executed;
	// its handle reports ErrClosed.
	Submit(job Job) Handle
	// Close stops accepting jobs and waits for in-flight jobs to finish.
	Close()
}

type handle struct {
	done chan struct{}
	err  error
}

func (h *handle) Done() <-chan struct{} { return h.done }
func (h *handle) Err() error            { return h.err }

type queued struct {
	job    Job
	handle *handle
}

// Pool is a fixed-size worker pool implementing Runner.
type Pool struct {
	jobs   chan queued
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewPool starts a pool with the given number of workers.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		jobs:   make(chan queued, workers*4),
		ctx:    ctx,
		cancel: cancel,
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for q := range p.jobs {
		q.handle.err = q.job(p.ctx)
		close(q.handle.done)
	}
}

// Submit queues a job for execution. It blocks if the queue is full. After
// Close the job is rejected, with ErrClosed on its handle.
func (p *Pool) Submit(job Job) Handle {
	h := &handle{done: make(chan struct{})}

	// The send happens under the lock so Close cannot close the channel
	// between the closed check and the send. Workers drain the queue
	// independently, so a blocked send still completes.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		h.err = ErrClosed
		close(h.done)
		return h
	}
	p.jobs <- queued{job: job, handle: h}
	return h
}

// Close stops accepting new jobs and waits for queued ones to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}
