package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"qbwc-webhook-adapter/internal/models"
)

// Processor handles one parsed answer.
type Processor interface {
	Process(ctx context.Context, job models.Job) error
}

// Pool manages a pool of workers and a buffered job queue.
type Pool struct {
	jobs      chan models.Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	logger    *slog.Logger
	processor Processor
}

// NewPool creates a new worker pool.
func NewPool(maxQueueSize int, logger *slog.Logger, processor Processor) *Pool {
	if maxQueueSize < 0 {
		maxQueueSize = 0
	}
	return &Pool{
		jobs:      make(chan models.Job, maxQueueSize),
		logger:    logger,
		processor: processor,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(numWorkers int) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	for i := 1; i <= numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit hands a job to the workers. When the buffer is full or the pool
// has stopped, the job runs on the caller's goroutine instead, so an
// answer is never dropped.
func (p *Pool) Submit(job models.Job) {
	p.mu.RLock()
	if !p.closed {
		select {
		case p.jobs <- job:
			p.mu.RUnlock()
			return
		default:
		}
	}
	p.mu.RUnlock()

	p.logger.Warn("Job queue unavailable, processing answer inline")
	p.run(p.logger.With("worker_id", 0), job)
}

// Stop closes the job queue and waits for the workers to drain it.
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool... Closing job queue.")
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("All workers have stopped.")
}

// worker is the background goroutine that processes jobs from the queue.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.logger.Info("Worker started", "worker_id", id)

	logger := p.logger.With("worker_id", id)
	for job := range p.jobs {
		p.run(logger, job)
	}
}

func (p *Pool) run(logger *slog.Logger, job models.Job) {
	err := p.processor.Process(context.Background(), job)
	if err == nil {
		logger.Info("Answer processed successfully")
		return
	}

	var storageErr *ErrStorage
	var skippedErr *ErrSkipped
	switch {
	case errors.As(err, &storageErr):
		logger.Error("Answer could not be stored, nothing was dispatched", "op", storageErr.Op, "error", err)
	case errors.As(err, &skippedErr):
		logger.Warn("Answer archived but not dispatched", "reason", skippedErr.Reason, "error", err)
	default:
		logger.Error("Answer failed with an unknown error", "error", err)
	}
}
