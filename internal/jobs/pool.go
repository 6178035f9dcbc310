package jobs

import (
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrQueueFull  = errors.New("export queue is full")
)

// Pool runs submitted tasks on a fixed number of workers behind a bounded
// queue. Submit never blocks.
type Pool struct {
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewPool(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		tasks:   make(chan func(), queueSize),
		logger:  logger,
	}
}

// Start launches the workers. Calling it again is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.tasks {
				p.run(id, task)
			}
		}(i)
	}
}

// Submit enqueues task, failing with ErrQueueFull instead of waiting.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for workers to drain it.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if !started {
		return
	}
	p.wg.Wait()
}

// Pending is the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	return len(p.tasks)
}

func (p *Pool) run(worker int, task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				"worker", worker,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}
