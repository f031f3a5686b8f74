// Package worker runs execution polling on a pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/okian/endpointeval/internal/adapters/mq/queue"
	"github.com/okian/endpointeval/internal/domain/model"
	"github.com/okian/endpointeval/pkg/logger"
	"github.com/okian/endpointeval/pkg/metrics"
)

// Poller waits for an execution report to become available.
type Poller interface {
	PollUntilReady(ctx context.Context, executionID string) (model.ExecutionReport, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Result is the outcome of one job.
type Result struct {
	Job    queue.Job
	Report model.ExecutionReport
	Err    error
}

// Worker polls executions taken from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	poller  Poller
	results chan<- Result
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Poller, results chan<- Result, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		poller:   p,
		results:  results,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			res := w.process(ctx, job)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) Result {
	report, err := w.poller.PollUntilReady(ctx, job.ExecutionID)
	if err != nil {
		w.logger.Error(ctx, "polling failed",
			logger.String("execution_id", job.ExecutionID),
			logger.String("url", job.URL),
			logger.Error(err),
		)
		return Result{Job: job, Err: err}
	}
	return Result{Job: job, Report: report}
}

// Pool manages multiple workers sharing one queue and one result channel.
type Pool struct {
	workers []*InMemoryWorker
	results chan Result
	wg      sync.WaitGroup
}

// NewPool creates a pool of workerCount workers. Options apply to every
// worker; names are assigned per worker.
func NewPool(workerCount int, q Queue, p Poller, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		results: make(chan Result, workerCount),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append(append([]Option(nil), opts...), WithName("poller-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, p, pool.results, wopts...)
	}
	return pool
}

// Start starts all workers. Results is closed once every worker has exited.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdatePollWorkers(len(p.workers))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	go func() {
		p.wg.Wait()
		metrics.UpdatePollWorkers(0)
		close(p.results)
	}()
}

// Results returns the channel every worker reports to.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown stops every worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
