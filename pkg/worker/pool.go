// Package worker runs fire-and-forget jobs on a small bounded pool.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/fadedpez/clubwheel/internal/logging"
)

var (
	ErrQueueFull   = errors.New("worker queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Job is a unit of background work
type Job struct {
	Name string
	Fn   func(context.Context) error
}

// Pool executes submitted jobs with a fixed number of goroutines
type Pool struct {
	workers int
	queue   chan Job
	log     *logging.Logger

	mutex   sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given worker count and queue size
func NewPool(workers, queueSize int, logger *logging.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = logging.Default
	}
	return &Pool{
		workers: workers,
		queue:   make(chan Job, queueSize),
		log:     logger.With("worker"),
	}
}

// Start launches the workers
func (p *Pool) Start(ctx context.Context) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.running || p.stopped {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Submit queues a job without blocking
func (p *Pool) Submit(job Job) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new jobs, finishes the queued ones and waits for the workers
func (p *Pool) Stop() {
	p.mutex.Lock()
	if p.stopped {
		p.mutex.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	running := p.running
	p.mutex.Unlock()

	if running {
		p.wg.Wait()
		p.cancel()
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	for job := range p.queue {
		p.execute(ctx, job)
	}
}

func (p *Pool) execute(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job %s panicked: %v", job.Name, r)
		}
	}()

	if err := job.Fn(ctx); err != nil {
		p.log.Warn("job %s failed: %v", job.Name, err)
	}
}
